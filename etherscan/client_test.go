package etherscan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "account", r.URL.Query().Get("module"))
		assert.Equal(t, "txlist", r.URL.Query().Get("action"))
		assert.Equal(t, "0xabc", r.URL.Query().Get("address"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "1",
			"message": "OK",
			"result": [
				{"hash": "0x1", "to": "0xabc", "from": "0xdef", "timeStamp": "200", "value": "1000000000000000000"},
				{"hash": "0x2", "to": "0xabc", "from": "0xdef", "timeStamp": "100", "value": "0"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", time.Second)
	transactions, err := client.GetTransactions(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, "0x1", transactions[0].Hash)
	assert.Equal(t, "200", transactions[0].TimeStamp)
	assert.Equal(t, "1000000000000000000", transactions[0].Value)
	assert.Equal(t, "0x2", transactions[1].Hash)
}

func TestClient_GetTransactions_givenErrorStatus_thenEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// the explorer replaces the result list with a message string here
		_, _ = w.Write([]byte(`{"status": "0", "message": "No transactions found", "result": "..."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", time.Second)
	transactions, err := client.GetTransactions(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.NotNil(t, transactions)
	assert.Empty(t, transactions)
}

func TestClient_GetTransactions_givenHttpError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", time.Second)
	_, err := client.GetTransactions(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestClient_GetTransactions_givenMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", time.Second)
	_, err := client.GetTransactions(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestClient_GetTransactions_givenSlowSource_thenTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(250 * time.Millisecond)
		_, _ = w.Write([]byte(`{"status": "1", "message": "OK", "result": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 50*time.Millisecond)
	_, err := client.GetTransactions(context.Background(), "0xabc")
	assert.Error(t, err)
}
