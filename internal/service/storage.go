package service

import (
	"net/url"
	"strings"

	"github.com/forgo/sipmate/api/internal/model"
)

// Default stock photos shown when a wine has no stored image
const (
	FallbackRedWineImageURL   = "https://images.pexels.com/photos/1407846/pexels-photo-1407846.jpeg?auto=compress&cs=tinysrgb&w=400"
	FallbackWhiteWineImageURL = "https://images.pexels.com/photos/1407847/pexels-photo-1407847.jpeg?auto=compress&cs=tinysrgb&w=400"
)

const defaultImageBucket = "wine-images"

// wineImageFolders maps a wine type to its folder in the image bucket
var wineImageFolders = map[model.WineType]string{
	model.WineTypeRed:   "redwine_png",
	model.WineTypeWhite: "whitewine_png",
}

// ImageURLBuilder builds public object storage URLs for wine images
type ImageURLBuilder struct {
	baseURL string
	bucket  string
}

// NewImageURLBuilder creates a builder for baseURL and bucket. An empty
// baseURL makes every URL fall back to the stock photo.
func NewImageURLBuilder(baseURL, bucket string) *ImageURLBuilder {
	if bucket == "" {
		bucket = defaultImageBucket
	}
	return &ImageURLBuilder{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
	}
}

// WineImageURL returns
// <base>/storage/v1/object/public/<bucket>/<redwine_png|whitewine_png>/<name>
func (b *ImageURLBuilder) WineImageURL(imageName string, wineType model.WineType) string {
	name := strings.TrimSpace(imageName)
	if b == nil || b.baseURL == "" || name == "" {
		return FallbackImageURL(wineType)
	}

	folder, ok := wineImageFolders[wineType]
	if !ok {
		folder = wineImageFolders[model.WineTypeRed]
	}

	return b.baseURL + "/storage/v1/object/public/" +
		url.PathEscape(b.bucket) + "/" + folder + "/" + url.PathEscape(name)
}

// ForWine returns the image URL for w
func (b *ImageURLBuilder) ForWine(w model.Wine) string {
	return b.WineImageURL(w.ImageName, w.Type)
}

// FallbackImageURL returns the stock photo for a wine type
func FallbackImageURL(wineType model.WineType) string {
	if wineType == model.WineTypeWhite {
		return FallbackWhiteWineImageURL
	}
	return FallbackRedWineImageURL
}
