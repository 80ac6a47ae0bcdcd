package project

import (
	"path"
	"strings"
)

var languageByExt = map[string]string{
	".js":   "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".html": "html",
	".htm":  "html",
	".css":  "css",
	".scss": "scss",
	".json": "json",
	".md":   "markdown",
	".py":   "python",
	".go":   "go",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".php":  "php",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".sh":   "shell",
	".yml":  "yaml",
	".yaml": "yaml",
	".toml": "toml",
	".sql":  "sql",
	".xml":  "xml",
	".svg":  "xml",
}

// LanguageForPath is an editor hint only; unknown extensions are plaintext.
func LanguageForPath(p string) string {
	if lang, ok := languageByExt[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return "plaintext"
}
