package services

import (
	"path"
	"strings"
)

// DefaultExtension is applied when the source filename carries no recognized
// extension. Proprietary radiology containers commonly arrive without one.
const DefaultExtension = ".dcm"

// recognizedExtensions are the extensions preserved verbatim in storage keys.
var recognizedExtensions = map[string]bool{
	".dcm":   true,
	".dicom": true,
	".jpg":   true,
	".jpeg":  true,
	".png":   true,
	".gif":   true,
}

// AssetKey derives the canonical storage key for an instance:
// {patientID}/{studyUID}/{seriesUID}/{sopUID}{ext}. Pure and total: the same
// identifiers always produce the same key, so a duplicate upload overwrites
// the prior object instead of orphaning it.
func AssetKey(patientID, studyUID, seriesUID, sopUID, fileName string) string {
	return path.Join(
		strings.TrimSpace(patientID),
		strings.TrimSpace(studyUID),
		strings.TrimSpace(seriesUID),
		strings.TrimSpace(sopUID)+ExtensionFor(fileName),
	)
}

// ThumbnailKey maps an asset key to its thumbnail key: extension replaced by
// "_thumb.jpg". Thumbnails live in their own bucket namespace so the shared
// directory layout never collides with originals.
func ThumbnailKey(assetKey string) string {
	ext := path.Ext(assetKey)
	return strings.TrimSuffix(assetKey, ext) + "_thumb.jpg"
}

// ExtensionFor returns the recognized extension of fileName (lowercased,
// leading dot included), or DefaultExtension.
func ExtensionFor(fileName string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if recognizedExtensions[ext] {
		return ext
	}
	return DefaultExtension
}
