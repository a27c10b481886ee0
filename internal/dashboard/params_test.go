/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dashboard

import (
	"net/http/httptest"
	"testing"
)

func TestSafeIntClampsToRange(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want int
	}{
		{"missing uses default", "/?x=", 100},
		{"within range", "/?limit=250", 250},
		{"above max clamps", "/?limit=5000", 1000},
		{"below min clamps", "/?limit=-5", 1},
		{"non integer uses default", "/?limit=abc", 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tc.url, nil)
			if got := safeInt(r, "limit", 100, 1, 1000); got != tc.want {
				t.Errorf("safeInt() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBoolParamPtr(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want *bool
	}{
		{"absent is nil", "/", nil},
		{"true", "/?requires_review=true", boolPtr(true)},
		{"one", "/?requires_review=1", boolPtr(true)},
		{"false", "/?requires_review=false", boolPtr(false)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tc.url, nil)
			got := boolParamPtr(r, "requires_review")
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("boolParamPtr() = %v, want %v", got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Errorf("boolParamPtr() = %v, want %v", *got, *tc.want)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }
