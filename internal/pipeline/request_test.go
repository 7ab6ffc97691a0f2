package pipeline

import (
	"errors"
	"strings"
	"testing"

	"clinicd/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func TestFromAPI(t *testing.T) {
	req, err := FromAPI(types.AnalyzeRequest{Text: "t"}, "id")
	if err != nil || req.Mode != ModeAuto || req.RequestID != "id" {
		t.Fatalf("default mode: %+v %v", req, err)
	}
	req, err = FromAPI(types.AnalyzeRequest{Text: "t", AutoClassify: ptr(false), Pathology: ptr(" Depression ")}, "")
	if err != nil || req.Mode != ModeManual || req.Label != "Depression" {
		t.Fatalf("manual: %+v %v", req, err)
	}
	_, err = FromAPI(types.AnalyzeRequest{Text: "t", AutoClassify: ptr(true), Pathology: ptr("Depression")}, "")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "pathology" {
		t.Fatalf("auto with pathology: %v", err)
	}
}

func TestRequestValidate(t *testing.T) {
	long := strings.Repeat("a", 50)
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"ok auto", Request{Text: long, Mode: ModeAuto}, ""},
		{"ok manual", Request{Text: long, Mode: ModeManual, Label: "Schizophrenia"}, ""},
		{"empty text", Request{Mode: ModeAuto}, "text"},
		{"short after trim", Request{Text: "   " + strings.Repeat("a", 49) + "   ", Mode: ModeAuto}, "text"},
		{"bad mode", Request{Text: long, Mode: "batch"}, "mode"},
		{"manual missing label", Request{Text: long, Mode: ModeManual}, "pathology"},
		{"manual bad label", Request{Text: long, Mode: ModeManual, Label: "depression"}, "pathology"},
	}
	for _, tc := range cases {
		err := tc.req.Validate(50)
		if tc.field == "" {
			if err != nil {
				t.Fatalf("%s: unexpected %v", tc.name, err)
			}
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != tc.field {
			t.Fatalf("%s: got %v want field %s", tc.name, err, tc.field)
		}
		if ve.Reason == "" {
			t.Fatalf("%s: empty reason", tc.name)
		}
	}
}

func TestValidateCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 50)
	if err := (Request{Text: text, Mode: ModeAuto}).Validate(50); err != nil {
		t.Fatalf("50 runes rejected: %v", err)
	}
}

func TestPathologyMessage(t *testing.T) {
	err := (Request{Text: strings.Repeat("a", 60), Mode: ModeManual, Label: "Flu"}).Validate(50)
	if err == nil || !strings.Contains(err.Error(), "must be one of") {
		t.Fatalf("message: %v", err)
	}
}
