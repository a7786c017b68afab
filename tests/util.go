// Package testutil provides fixtures shared by the package tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	Username = "bwf_reporter"
	Password = "s3cret"
)

// ArcGISServer fakes the parts of the ArcGIS Online REST API the dashboard uses.
// Items are named after their id; each one serves a single table.
type ArcGISServer struct {
	*httptest.Server

	PageSize int // features per query page; 0 means all at once

	mu       sync.Mutex
	tables   map[string][]map[string]interface{} // {itemID: features}
	down     map[string]bool                     // items answering 500
	tokens   map[string]bool
	requests map[string]int // {path: count}
}

// NewArcGISServer starts a fake portal serving `tables`, closed with the test.
func NewArcGISServer(t *testing.T, tables map[string][]map[string]interface{}) *ArcGISServer {
	t.Helper()
	s := &ArcGISServer{
		tables:   tables,
		down:     make(map[string]bool),
		tokens:   make(map[string]bool),
		requests: make(map[string]int),
	}
	if s.tables == nil {
		s.tables = make(map[string][]map[string]interface{})
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// SetDown makes every request about `itemID` fail (or succeed again).
func (s *ArcGISServer) SetDown(itemID string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down[itemID] = down
}

// SetTable replaces the features served for `itemID`.
func (s *ArcGISServer) SetTable(itemID string, features []map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[itemID] = features
}

// RevokeTokens invalidates every token generated so far.
func (s *ArcGISServer) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool)
}

// Requests returns how many requests hit `path`.
func (s *ArcGISServer) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *ArcGISServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.URL.Path]++

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	path := r.URL.Path
	if path == "/sharing/rest/generateToken" {
		s.generateToken(w, r)
		return
	}
	if !s.tokens[r.Form.Get("token")] {
		writeJSON(w, map[string]interface{}{"error": map[string]interface{}{"code": 498, "message": "Invalid token."}})
		return
	}

	switch {
	case strings.HasPrefix(path, "/sharing/rest/content/items/"):
		itemID := strings.TrimPrefix(path, "/sharing/rest/content/items/")
		if _, ok := s.tables[itemID]; !ok {
			writeJSON(w, map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": "Item does not exist or is inaccessible."}})
			return
		}
		writeJSON(w, map[string]interface{}{"id": itemID, "type": "Feature Service", "url": s.URL + "/services/" + itemID + "/FeatureServer"})
	case strings.HasPrefix(path, "/services/"):
		parts := strings.Split(strings.TrimPrefix(path, "/services/"), "/")
		itemID := parts[0]
		if s.down[itemID] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch len(parts) {
		case 2: // {item}/FeatureServer
			writeJSON(w, map[string]interface{}{"layers": []interface{}{}, "tables": []interface{}{map[string]interface{}{"id": 0, "name": "SWE Weekly"}}})
		case 4: // {item}/FeatureServer/0/query
			s.query(w, r, itemID)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *ArcGISServer) generateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		writeJSON(w, map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": "Unable to generate token.", "details": []string{"Invalid username or password."}}})
		return
	}
	token := fmt.Sprintf("token-%d", len(s.tokens)+s.requests["/sharing/rest/generateToken"])
	s.tokens[token] = true
	writeJSON(w, map[string]interface{}{
		"token":   token,
		"expires": time.Now().Add(time.Hour).UnixNano() / int64(time.Millisecond),
		"ssl":     true,
	})
}

func (s *ArcGISServer) query(w http.ResponseWriter, r *http.Request, itemID string) {
	features := s.tables[itemID]
	offset, _ := strconv.Atoi(r.Form.Get("resultOffset"))
	if offset > len(features) {
		offset = len(features)
	}
	end := len(features)
	if s.PageSize > 0 && offset+s.PageSize < end {
		end = offset + s.PageSize
	}
	page := make([]interface{}, 0, end-offset)
	for _, attrs := range features[offset:end] {
		page = append(page, map[string]interface{}{"attributes": attrs})
	}
	writeJSON(w, map[string]interface{}{
		"objectIdFieldName":     "OBJECTID",
		"features":              page,
		"exceededTransferLimit": end < len(features),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Feature builds the attributes of one survey record.
func Feature(id, name, community string, week int, last5 string, counts ...float64) map[string]interface{} {
	attrs := map[string]interface{}{
		"BrightWaterID": id,
		"Namebwe":       name,
		"Community":     community,
		"Week":          float64(week),
		"Last5Weeks":    last5,
	}
	fields := []string{"InitialHouseholdSurveys", "FollowUpHouseholdSurveys", "HHoldWaterTests", "CommWaterTests", "HHoldTeachingVisits"}
	for i, f := range fields {
		var n float64
		if i < len(counts) {
			n = counts[i]
		}
		attrs[f] = n
	}
	return attrs
}
