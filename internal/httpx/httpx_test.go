package httpx

import (
	"net/url"
	"strconv"
	"testing"
)

func TestParsePage(t *testing.T) {
	cases := []struct {
		query     string
		wantPage  int64
		wantLimit int64
		wantErr   bool
	}{
		{query: "", wantPage: 1, wantLimit: 20},
		{query: "page=3&limit=5", wantPage: 3, wantLimit: 5},
		{query: "limit=5000", wantPage: 1, wantLimit: 1000},
		{query: "page=" + strconv.Itoa(MaxPage), wantPage: MaxPage, wantLimit: 20},
		{query: "page=" + strconv.Itoa(MaxPage+1), wantErr: true},
		{query: "page=9223372036854775807", wantErr: true},
		{query: "page=0", wantErr: true},
		{query: "limit=-1", wantErr: true},
	}
	for _, tc := range cases {
		values, err := url.ParseQuery(tc.query)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.query, err)
		}
		page, limit, err := ParsePage(values, 20, 1000)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got page=%d", tc.query, page)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.query, err)
		}
		if page != tc.wantPage || limit != tc.wantLimit {
			t.Fatalf("%q: got page=%d limit=%d", tc.query, page, limit)
		}
	}
}
