package manifest

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuild_DerivesURLsAndDefaults(t *testing.T) {
	doc := Build("https://explorer.example/ ", Options{})

	want := Frame{
		Version:               "1",
		Name:                  DefaultTitle,
		IconURL:               "https://explorer.example/icon.png",
		HomeURL:               "https://explorer.example",
		ImageURL:              "https://explorer.example/opengraph-image",
		ButtonTitle:           "Open",
		WebhookURL:            "https://explorer.example/api/webhook",
		SplashImageURL:        "https://explorer.example/splash.png",
		SplashBackgroundColor: "#555555",
		PrimaryCategory:       "social",
	}
	if diff := cmp.Diff(want, doc.Frame); diff != "" {
		t.Fatalf("frame mismatch (-want +got):\n%s", diff)
	}
	if doc.AccountAssociation != nil {
		t.Fatalf("expected no association, got %+v", doc.AccountAssociation)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["accountAssociation"]; ok {
		t.Fatalf("accountAssociation must be omitted when unset: %s", b)
	}
}

func TestBuild_IncludesCompleteAssociationOnly(t *testing.T) {
	full := &AccountAssociation{Header: "h", Payload: "p", Signature: "s"}
	doc := Build("https://x.example", Options{AccountAssociation: full, Title: "Mine"})
	if doc.AccountAssociation == nil || doc.AccountAssociation.Signature != "s" {
		t.Fatalf("expected association, got %+v", doc.AccountAssociation)
	}
	if doc.Frame.Name != "Mine" {
		t.Fatalf("expected custom title, got %q", doc.Frame.Name)
	}

	partial := Options{AccountAssociation: &AccountAssociation{Header: "h"}}
	if Build("https://x.example", partial).AccountAssociation != nil {
		t.Fatalf("partial association must be dropped")
	}
	if err := partial.Validate(); err == nil {
		t.Fatalf("expected validation error for a partial association")
	}
	if err := (Options{AccountAssociation: &AccountAssociation{}}).Validate(); err != nil {
		t.Fatalf("an empty association is allowed, got %v", err)
	}
}
