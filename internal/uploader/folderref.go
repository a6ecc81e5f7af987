package uploader

import "regexp"

// folderPattern captures the id in ".../folders/<id>", stopping at "/", "?" or "#".
var folderPattern = regexp.MustCompile(`/folders/([^/?#]+)`)

// ParseFolderReference extracts a folder id from a Drive folder URL such as
// https://drive.google.com/drive/folders/1AbC?usp=sharing.
func ParseFolderReference(ref string) (string, error) {
	m := folderPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", ConfigError("[Google Drive] Invalid folder URL: %s", ref)
	}
	return m[1], nil
}
