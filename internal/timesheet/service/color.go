package service

import "crypto/md5"

// NeutralColor is used for entries without a project.
const NeutralColor = "#95a5a6"

var projectPalette = []string{
	"#3498db",
	"#e74c3c",
	"#f39c12",
	"#2ecc71",
	"#9b59b6",
	"#1abc9c",
	"#e67e22",
	"#34495e",
	"#f1c40f",
	"#e91e63",
	"#00bcd4",
	"#ff9800",
}

// ProjectColor maps a project id to a stable palette colour: the MD5 digest
// read as a big-endian integer, modulo the palette size.
func ProjectColor(projectID string) string {
	if projectID == "" {
		return NeutralColor
	}
	sum := md5.Sum([]byte(projectID))
	n := len(projectPalette)
	idx := 0
	for _, b := range sum {
		idx = (idx*256 + int(b)) % n
	}
	return projectPalette[idx]
}
