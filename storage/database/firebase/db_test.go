package firebasedb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_toSnapshot(t *testing.T) {
	tests := []struct {
		name       string
		raw        json.RawMessage
		wantExists bool
	}{
		{name: "empty", raw: nil, wantExists: false},
		{name: "null", raw: json.RawMessage("null"), wantExists: false},
		{name: "marker", raw: json.RawMessage(`"reserved"`), wantExists: true},
		{name: "object", raw: json.RawMessage(`{"count":3}`), wantExists: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := toSnapshot(tt.raw)
			assert.Equal(t, tt.wantExists, snap.Exists())
			if !tt.wantExists {
				assert.Nil(t, snap)
			}
		})
	}
}
