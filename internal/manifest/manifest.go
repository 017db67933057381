// Package manifest builds the well-known discovery document that lets a
// social client embed the explorer as a mini app.
package manifest

import (
	"fmt"
	"strings"
)

const (
	DefaultTitle       = "Collectibles Explorer"
	DefaultDescription = "Walk through recently minted collectible casts in 3D"
)

// AccountAssociation is the signed domain claim issued by the social network.
type AccountAssociation struct {
	Header    string `json:"header" yaml:"header"`
	Payload   string `json:"payload" yaml:"payload"`
	Signature string `json:"signature" yaml:"signature"`
}

// Complete reports whether all three parts are present.
func (a *AccountAssociation) Complete() bool {
	return a != nil && a.Header != "" && a.Payload != "" && a.Signature != ""
}

type Frame struct {
	Version               string `json:"version"`
	Name                  string `json:"name"`
	IconURL               string `json:"iconUrl"`
	HomeURL               string `json:"homeUrl"`
	ImageURL              string `json:"imageUrl"`
	ButtonTitle           string `json:"buttonTitle"`
	WebhookURL            string `json:"webhookUrl"`
	SplashImageURL        string `json:"splashImageUrl"`
	SplashBackgroundColor string `json:"splashBackgroundColor"`
	PrimaryCategory       string `json:"primaryCategory"`
}

type Document struct {
	AccountAssociation *AccountAssociation `json:"accountAssociation,omitempty"`
	Frame              Frame               `json:"frame"`
}

// Options is the manifest section of the config file.
type Options struct {
	Title                 string              `yaml:"title"`
	Description           string              `yaml:"description"`
	ButtonTitle           string              `yaml:"button_title"`
	SplashBackgroundColor string              `yaml:"splash_background_color"`
	PrimaryCategory       string              `yaml:"primary_category"`
	AccountAssociation    *AccountAssociation `yaml:"account_association"`
}

// WithDefaults fills every empty field with its default.
func (o Options) WithDefaults() Options {
	if strings.TrimSpace(o.Title) == "" {
		o.Title = DefaultTitle
	}
	if strings.TrimSpace(o.Description) == "" {
		o.Description = DefaultDescription
	}
	if o.ButtonTitle == "" {
		o.ButtonTitle = "Open"
	}
	if o.SplashBackgroundColor == "" {
		o.SplashBackgroundColor = "#555555"
	}
	if o.PrimaryCategory == "" {
		o.PrimaryCategory = "social"
	}
	return o
}

// Validate rejects a partially filled account association.
func (o Options) Validate() error {
	a := o.AccountAssociation
	if a == nil || (a.Header == "" && a.Payload == "" && a.Signature == "") {
		return nil
	}
	if !a.Complete() {
		return fmt.Errorf("manifest account_association needs header, payload and signature")
	}
	return nil
}

// Build renders the document for an app served at publicURL. Asset URLs are
// derived from it; an incomplete association is left out.
func Build(publicURL string, opts Options) Document {
	opts = opts.WithDefaults()
	base := strings.TrimRight(strings.TrimSpace(publicURL), "/")

	doc := Document{
		Frame: Frame{
			Version:               "1",
			Name:                  opts.Title,
			IconURL:               base + "/icon.png",
			HomeURL:               base,
			ImageURL:              base + "/opengraph-image",
			ButtonTitle:           opts.ButtonTitle,
			WebhookURL:            base + "/api/webhook",
			SplashImageURL:        base + "/splash.png",
			SplashBackgroundColor: opts.SplashBackgroundColor,
			PrimaryCategory:       opts.PrimaryCategory,
		},
	}
	if opts.AccountAssociation.Complete() {
		a := *opts.AccountAssociation
		doc.AccountAssociation = &a
	}
	return doc
}
