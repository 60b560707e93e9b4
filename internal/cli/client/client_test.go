package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenServer mocks the /token endpoint for the given credentials
func tokenServer(t *testing.T, username, password, token string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("username") != username || r.PostForm.Get("password") != password {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": token,
			"token_type":   "bearer",
		})
	}))
}

func TestRequestToken_Success(t *testing.T) {
	srv := tokenServer(t, "alice", "correct-pw", "abc.def.ghi")
	defer srv.Close()

	c := New(srv.URL)
	token, err := c.RequestToken(context.Background(), "alice", "correct-pw")

	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestRequestToken_WrongPassword(t *testing.T) {
	srv := tokenServer(t, "alice", "correct-pw", "abc.def.ghi")
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.RequestToken(context.Background(), "alice", "wrong-pw")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Incorrect username or password", apiErr.Message)
}

func TestRequestToken_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).RequestToken(context.Background(), "alice", "pw")
	assert.Error(t, err)
}

func TestRequestToken_SkipsDefaultHeadersAndInterceptors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetDefaultHeader("Authorization", "Bearer stale")
	called := false
	c.AddResponseInterceptor(func(*http.Response) { called = true })

	_, err := c.RequestToken(context.Background(), "alice", "pw")
	assert.Error(t, err)
	assert.False(t, called)
}

func TestDefaultHeaders(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		if present {
			got = append(got, r.Header.Get("Authorization"))
		} else {
			got = append(got, "<absent>")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","username":"alice","is_active":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	c.SetDefaultHeader("authorization", "Bearer t1")
	value, ok := c.DefaultHeader("Authorization")
	assert.True(t, ok)
	assert.Equal(t, "Bearer t1", value)

	_, err := c.Me(ctx)
	require.NoError(t, err)

	c.DeleteDefaultHeader("Authorization")
	_, ok = c.DefaultHeader("Authorization")
	assert.False(t, ok)

	_, err = c.Me(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer t1", "<absent>"}, got)
}

func TestResponseInterceptors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	var statuses []int
	remove := c.AddResponseInterceptor(func(resp *http.Response) {
		statuses = append(statuses, resp.StatusCode)
	})

	_, err := c.GetKPIs(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, []int{http.StatusUnauthorized}, statuses)

	remove()
	remove()

	_, err = c.GetKPIs(context.Background())
	require.Error(t, err)
	assert.Len(t, statuses, 1)
}

func TestGetProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/products/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Produto não encontrado"}`))
			return
		}
		assert.Equal(t, "/api/products/P-001", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "01HZ",
			"product_code": "P-001",
			"product_name": "Widget",
			"created_at": "2024-01-01T00:00:00Z",
			"history": [
				{"id":"h1","date":"2024-01-31","opening_stock":10,"inbound_quantity":5,"sold_quantity":3,"closing_stock":12}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	product, err := c.GetProduct(context.Background(), "P-001")
	require.NoError(t, err)
	assert.Equal(t, "Widget", product.ProductName)
	require.Len(t, product.History, 1)
	assert.Equal(t, 12, product.History[0].ClosingStock)

	_, err = c.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"product_code"}, req.Dimensions)
		assert.Equal(t, "sold_quantity", req.Metrics[0].Name)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"product_code":"P-001","sold_quantity":42}]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	rows, err := c.Query(context.Background(), QueryRequest{
		StartDate:  "2024-01-01",
		EndDate:    "2024-12-31",
		Dimensions: []string{"product_code"},
		Metrics:    []Metric{{Name: "sold_quantity"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P-001", rows[0]["product_code"])
	assert.Equal(t, float64(42), rows[0]["sold_quantity"])

	_, err = c.Query(context.Background(), QueryRequest{})
	assert.Error(t, err)
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://BI.example.com/api/", want: "https://bi.example.com"},
		{in: "http://127.0.0.1:8000", want: "http://127.0.0.1:8000"},
		{in: "ftp://example.com", wantErr: true},
		{in: "example.com", wantErr: true},
	}

	for _, tt := range tests {
		got, err := Origin(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestKPIs_TargetPercent(t *testing.T) {
	assert.Equal(t, 50.0, (&KPIs{CurrentMonthSales: 50, SalesTarget: 100}).TargetPercent())
	assert.Equal(t, 0.0, (&KPIs{CurrentMonthSales: 50}).TargetPercent())
}
