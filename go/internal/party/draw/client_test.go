package draw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Draw(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, drawEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"slots":[{"id":"d1","name":"Pho"},null,{"id":"d3","name":"Mochi"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.SetAPIKey("k")

	res, err := c.Draw(context.Background(), Request{
		Categories: []string{"thai"},
		Locked:     []models.LockedSlot{{Index: 1, DishID: "d2"}},
		Recent:     []string{"d9"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Pho", res.Slots[0].Name)
	assert.Nil(t, res.Slots[1])
	assert.Equal(t, []string{"thai"}, got.Categories)
	assert.Equal(t, []models.LockedSlot{{Index: 1, DishID: "d2"}}, got.Locked)
	assert.Equal(t, []string{"d9"}, got.Recent)
}

func TestClient_Draw_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		badRes bool
	}{
		{"server error", http.StatusInternalServerError, `boom`, false},
		{"wrong slot count", http.StatusOK, `{"slots":[null,null]}`, true},
		{"not json", http.StatusOK, `nope`, true},
		{"dish without id", http.StatusOK, `{"slots":[{"name":"x"},null,null]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Draw(context.Background(), Request{})
			require.Error(t, err)
			if tt.badRes {
				assert.ErrorIs(t, err, ErrBadResponse)
			}
		})
	}
}

func TestClient_Draw_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, time.Minute).Draw(ctx, Request{})
	assert.Error(t, err)
}
