package media

import (
	"path/filepath"
	"strings"

	"tgfeed/internal/domain"
)

const fallbackMIME = "application/octet-stream"

// kindMIME is the fixed kind → MIME table used when the upstream message
// carries no explicit MIME field.
var kindMIME = map[domain.MediaKind]string{
	domain.KindPhoto:     "image/jpeg",
	domain.KindVideo:     "video/mp4",
	domain.KindAnimation: "image/gif",
	domain.KindVoice:     "audio/ogg",
	domain.KindAudio:     "audio/mpeg",
	domain.KindSticker:   "image/webp",
}

// extMIME resolves generic file attachments by extension.
var extMIME = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".zip":  "application/zip",
	".rar":  "application/x-rar-compressed",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func mimeByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if m, ok := extMIME[ext]; ok {
		return m
	}
	return fallbackMIME
}
