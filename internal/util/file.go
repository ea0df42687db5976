package util

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// SniffImage 按文件头识别类型，只接受 image/*，与扩展名无关
func SniffImage(data []byte) (string, error) {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, MimeImage) {
		return contentType, NewValidationError("avatar", fmt.Sprintf("unsupported content type %s", contentType))
	}
	return contentType, nil
}

func HasAllowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
