package library

import (
	"reflect"
	"testing"

	"reshelve/internal/config"
)

func testCategories() *Categories {
	return NewCategories(config.DefaultCategories(), "Album")
}

func TestParseFolderName(t *testing.T) {
	cats := testCategories()
	cases := []struct {
		in   string
		want FolderName
	}{
		{"1980 - Album One", FolderName{Year: 1980, YearPrefixed: true, Title: "Album One"}},
		{"1985 - Live Show", FolderName{Year: 1985, YearPrefixed: true, Title: "Live Show"}},
		{"1985 - Live Show (Live)", FolderName{Year: 1985, YearPrefixed: true, Title: "Live Show", CategoryHint: "Live"}},
		{"1999 - Hits [compilations] (Deluxe Edition)", FolderName{Year: 1999, YearPrefixed: true, Title: "Hits", CategoryHint: "Compilation", Editions: []string{"Deluxe Edition"}}},
		{"1990_Underscored", FolderName{Year: 1990, Title: "Underscored"}},
		{"(2001) Second Coming", FolderName{Year: 2001, Title: "Second Coming"}},
		{"Third Way (2004)", FolderName{Year: 2004, Title: "Third Way"}},
		{"Fourth Wall (2006) (Remastered)", FolderName{Year: 2006, Title: "Fourth Wall", Editions: []string{"Remastered"}}},
		{"Untitled Demo Tape", FolderName{Title: "Untitled Demo Tape"}},
		{"(Live)", FolderName{Title: "(Live)"}},
		{"0001 - Too Early", FolderName{Title: "0001 - Too Early"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			got := ParseFolderName(tc.in, cats)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseFolderName(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFolderNameFormat(t *testing.T) {
	name := FolderName{Year: 1985, Title: "Live Show", Editions: []string{"Deluxe"}}
	if got := name.Format(""); got != "1985 - Live Show (Deluxe)" {
		t.Fatalf("unexpected format: %q", got)
	}
	if got := name.Format("Live"); got != "1985 - Live Show (Live) (Deluxe)" {
		t.Fatalf("unexpected format with category: %q", got)
	}
	if got := (FolderName{Title: "No Year"}).Format(""); got != "No Year" {
		t.Fatalf("unexpected format without year: %q", got)
	}
}

func TestCategoriesCanonical(t *testing.T) {
	cats := testCategories()
	cases := map[string]string{
		"live":         "Live",
		"LIVE":         "Live",
		" Lïve ":       "Live",
		"compilations": "Compilation",
		"ost":          "Soundtrack",
		"EPs":          "EP",
	}
	for in, want := range cases {
		got, ok := cats.Canonical(in)
		if !ok || got != want {
			t.Fatalf("Canonical(%q) = %q,%v want %q", in, got, ok, want)
		}
	}
	if _, ok := cats.Canonical("Deluxe Edition"); ok {
		t.Fatal("edition must not canonicalize to a category")
	}
	if _, ok := cats.FolderName("Compilations"); ok {
		t.Fatal("aliases must not be accepted as folder names")
	}
	if !cats.IsDefault("album") {
		t.Fatal("expected album to be the default category")
	}
}
