// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/card-auction/models"
)

func TestWithLogging(t *testing.T) {
	handlerCalled := false
	testHandler := func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}

	wrappedHandler := WithLogging(testHandler)

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()
	wrappedHandler(w, req)

	assert.True(t, handlerCalled, "Expected handler to be called")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", w.Body.String())
}

func TestWithLogging_PreservesResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"OK", http.StatusOK, "ok"},
		{"Created", http.StatusCreated, `{"id":"123"}`},
		{"BadRequest", http.StatusBadRequest, `{"error":"bad request"}`},
		{"NotFound", http.StatusNotFound, "not found"},
		{"InternalError", http.StatusInternalServerError, "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			})

			req := httptest.NewRequest("POST", "/api/test", nil)
			w := httptest.NewRecorder()
			handler(w, req)

			assert.Equal(t, tc.statusCode, w.Code)
			assert.Equal(t, tc.body, w.Body.String())
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	t.Run("implicit 200 on write", func(t *testing.T) {
		rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
		rec.Write([]byte("x"))
		assert.Equal(t, http.StatusOK, rec.status)
	})

	t.Run("first status wins", func(t *testing.T) {
		rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
		rec.WriteHeader(http.StatusAccepted)
		rec.WriteHeader(http.StatusTeapot)
		assert.Equal(t, http.StatusAccepted, rec.status)
	})

	t.Run("hijack unsupported", func(t *testing.T) {
		rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
		_, _, err := rec.Hijack()
		assert.Error(t, err)
	})

	t.Run("hijack passes through", func(t *testing.T) {
		hijacked := make(chan bool, 1)
		srv := httptest.NewServer(WithLogging(func(w http.ResponseWriter, r *http.Request) {
			hj, ok := w.(http.Hijacker)
			if !ok {
				hijacked <- false
				return
			}
			conn, buf, err := hj.Hijack()
			if err != nil {
				hijacked <- false
				return
			}
			defer conn.Close()
			buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok")
			buf.Flush()
			hijacked <- true
		}))
		defer srv.Close()

		conn, err := net.Dial("tcp", strings.TrimPrefix(srv.URL, "http://"))
		require.NoError(t, err)
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(2 * time.Second))
		_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		require.NoError(t, err)

		resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
		require.NoError(t, err)
		resp.Body.Close()

		assert.True(t, <-hijacked)
	})
}

func TestJSONResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		data       any
		expected   string
	}{
		{
			name:       "simple struct",
			statusCode: http.StatusOK,
			data:       map[string]string{"message": "hello"},
			expected:   `{"message":"hello"}`,
		},
		{
			name:       "created response",
			statusCode: http.StatusCreated,
			data:       models.CreateAccountResponse{AccountID: "abc123", AccountToken: "tok456"},
			expected:   `{"account_id":"abc123","account_token":"tok456"}`,
		},
		{
			name:       "error response",
			statusCode: http.StatusBadRequest,
			data:       models.ErrorResponse{Error: "Bad Request", Message: "missing field"},
			expected:   `{"error":"Bad Request","message":"missing field"}`,
		},
		{
			name:       "array data",
			statusCode: http.StatusOK,
			data:       []string{"a", "b", "c"},
			expected:   `["a","b","c"]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			JSONResponse(w, tc.statusCode, tc.data)

			assert.Equal(t, tc.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tc.expected, strings.TrimSpace(w.Body.String()))
		})
	}
}

func TestErrorResponse(t *testing.T) {
	testCases := []struct {
		name          string
		statusCode    int
		message       string
		expectedError string
	}{
		{"bad request", http.StatusBadRequest, "title is required", "Bad Request"},
		{"unauthorized", http.StatusUnauthorized, "invalid account token", "Unauthorized"},
		{"forbidden", http.StatusForbidden, "cannot bid on your own auction", "Forbidden"},
		{"not found", http.StatusNotFound, "auction not found", "Not Found"},
		{"conflict", http.StatusConflict, "auction is not open", "Conflict"},
		{"internal error", http.StatusInternalServerError, "database error", "Internal Server Error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorResponse(w, tc.statusCode, tc.message)

			assert.Equal(t, tc.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp models.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tc.expectedError, resp.Error)
			assert.Equal(t, tc.message, resp.Message)
		})
	}
}

func TestParseJSONBody(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		body := `{"title":"Charizard 1st Edition","item_type":"card","starting_price":5000}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.CreateAuctionRequest
		require.NoError(t, ParseJSONBody(req, &parsed))
		assert.Equal(t, "Charizard 1st Edition", parsed.Title)
		assert.Equal(t, models.ItemCard, parsed.ItemType)
		assert.Equal(t, int64(5000), parsed.StartingPrice)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{invalid json}`))
		var parsed models.CreateAuctionRequest
		assert.Error(t, ParseJSONBody(req, &parsed))
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))
		var parsed models.CreateAuctionRequest
		assert.Error(t, ParseJSONBody(req, &parsed))
	})

	t.Run("null body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader("null"))
		var parsed *models.CreateAuctionRequest
		require.NoError(t, ParseJSONBody(req, &parsed))
		assert.Nil(t, parsed)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		body := `{"amount":500,"bidder_id":"someone-else"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))
		var parsed models.PlaceBidRequest
		assert.Error(t, ParseJSONBody(req, &parsed))
	})

	t.Run("trailing data rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"amount":500}{"amount":600}`))
		var parsed models.PlaceBidRequest
		assert.Error(t, ParseJSONBody(req, &parsed))
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		body := `{"title":"` + strings.Repeat("x", maxBodyBytes) + `"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))
		var parsed models.CreateAuctionRequest
		assert.Error(t, ParseJSONBody(req, &parsed))
	})
}

func TestCORS(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handled"))
	})
	corsHandler := CORS(nextHandler)

	t.Run("preflight OPTIONS request", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/auctions", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String(), "preflight should not call next")
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("regular request with origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/auctions", nil)
		req.Header.Set("Origin", "https://example.com")
		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, req)

		assert.Equal(t, "handled", w.Body.String())
		assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request without origin defaults to wildcard", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/auctions", nil)
		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allows account token header", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/auctions", nil)
		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, req)

		allowed := w.Header().Get("Access-Control-Allow-Headers")
		assert.Contains(t, allowed, "X-Account-Token")
		assert.Contains(t, allowed, "Content-Type")

		methods := w.Header().Get("Access-Control-Allow-Methods")
		for _, m := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
			assert.Contains(t, methods, m)
		}
	})
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{"X-Forwarded-For single IP", map[string]string{"X-Forwarded-For": "192.168.1.100"}, "10.0.0.1:12345", "192.168.1.100"},
		{"X-Forwarded-For chain", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "127.0.0.1:12345", "203.0.113.195"},
		{"X-Real-IP over RemoteAddr", map[string]string{"X-Real-IP": "203.0.113.50"}, "10.0.0.1:12345", "203.0.113.50"},
		{"X-Forwarded-For over X-Real-IP", map[string]string{"X-Forwarded-For": "192.168.1.100", "X-Real-IP": "203.0.113.50"}, "10.0.0.1:12345", "192.168.1.100"},
		{"RemoteAddr with port", nil, "192.168.1.50:54321", "192.168.1.50"},
		{"RemoteAddr without port", nil, "192.168.1.50", "192.168.1.50"},
		{"IPv6 RemoteAddr with port", nil, "[::1]:12345", "::1"},
		{"IPv6 in X-Forwarded-For", map[string]string{"X-Forwarded-For": "2001:db8::1"}, "127.0.0.1:12345", "2001:db8::1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.expectedIP, GetClientIP(req))
		})
	}
}

func TestSince(t *testing.T) {
	req := httptest.NewRequest("GET", "/notifications/poll?since=2026-01-02T03:04:05.123Z", nil)
	got, ok, err := Since(req, "since")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 123000000, time.UTC), got)

	req = httptest.NewRequest("GET", "/notifications/poll", nil)
	_, ok, err = Since(req, "since")
	require.NoError(t, err)
	assert.False(t, ok)

	req = httptest.NewRequest("GET", "/notifications/poll?since=yesterday", nil)
	_, _, err = Since(req, "since")
	assert.Error(t, err)
}
