package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/orcohen/crypto-logs/domain"
	"github.com/pkg/errors"
)

const recipientQuery = `{ "query": { "term": { "to": %q } }, "sort": [ { "timeStamp": { "order": "desc" } } ] }`
const recentLogsQuery = `{ "query": { "match_all": {} }, "sort": [ { "timeStamp": { "order": "desc" } } ] }`
const distinctRecipientsQuery = `{ "size": 0, "aggs": { "recipients": { "terms": { "field": "to", "size": %d } } } }`

// timeStamp is mapped as a number so that sorting is chronological even
// though the explorer delivers it as a string. Everything else passes
// through untyped.
const indexMapping = `{
  "mappings": {
    "properties": {
      "hash": { "type": "keyword" },
      "to": { "type": "keyword" },
      "from": { "type": "keyword" },
      "value": { "type": "keyword" },
      "timeStamp": { "type": "long" }
    }
  }
}`

// maxRecipientDocs bounds the per-recipient cleanup query. Between sweeps a
// recipient only ever grows by a handful of inserts, so this is plenty.
const maxRecipientDocs = 1000

const maxDistinctRecipients = 1000

type Client struct {
	esClient  *elasticsearch.Client
	indexName string
}

func NewClient(esClient *elasticsearch.Client, indexName string) *Client {
	return &Client{
		esClient:  esClient,
		indexName: indexName,
	}
}

type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Hits []transactionHit `json:"hits"`
	} `json:"hits"`
}

type transactionHit struct {
	Id     string             `json:"_id"`
	Source domain.Transaction `json:"_source"`
}

type aggregationResponse struct {
	Aggregations struct {
		Recipients struct {
			Buckets []struct {
				Key string `json:"key"`
			} `json:"buckets"`
		} `json:"recipients"`
	} `json:"aggregations"`
}

// CreateIndex bootstraps the transaction index if it does not exist yet.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.esClient.Indices.Exists([]string{c.indexName},
		c.esClient.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return errors.Wrap(err, "checking index existence")
	}
	defer closeBody(res.Body)
	if res.StatusCode == http.StatusOK {
		return nil
	}

	createRes, err := c.esClient.Indices.Create(c.indexName,
		c.esClient.Indices.Create.WithContext(ctx),
		c.esClient.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return errors.Wrap(err, "creating index")
	}
	defer closeBody(createRes.Body)
	if createRes.IsError() {
		return errors.Errorf("got error response creating index: %s", createRes.String())
	}
	log.Printf("Created index [%s].", c.indexName)
	return nil
}

// InsertUnique stores the transaction under its hash. The create operation
// is atomic on the document id, so two concurrent inserts of the same hash
// cannot both succeed. Returns false if the hash was already stored.
func (c *Client) InsertUnique(ctx context.Context, transaction domain.Transaction) (bool, error) {
	payload, err := json.Marshal(transaction)
	if err != nil {
		return false, errors.Wrap(err, "marshalling transaction")
	}

	res, err := c.esClient.Create(c.indexName, transaction.Hash, bytes.NewReader(payload),
		c.esClient.Create.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("calling elastic: %w", err)
	}
	defer closeBody(res.Body)

	if res.StatusCode == http.StatusConflict {
		return false, nil
	}
	if res.IsError() {
		return false, errors.Errorf("got error response from elastic: %s", res.String())
	}
	return true, nil
}

// DistinctRecipients returns every recipient address currently represented
// in the store.
func (c *Client) DistinctRecipients(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(distinctRecipientsQuery, maxDistinctRecipients)
	res, err := c.esClient.Search(
		c.esClient.Search.WithContext(ctx),
		c.esClient.Search.WithIndex(c.indexName),
		c.esClient.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return nil, fmt.Errorf("calling elastic: %w", err)
	}
	defer closeBody(res.Body)
	if res.IsError() {
		return nil, errors.Errorf("got error response from elastic: %s", res.String())
	}

	var response aggregationResponse
	if err = json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	recipients := make([]string, 0, len(response.Aggregations.Recipients.Buckets))
	for _, bucket := range response.Aggregations.Recipients.Buckets {
		recipients = append(recipients, bucket.Key)
	}
	return recipients, nil
}

// FindByRecipient returns all stored transactions sent to the given address,
// newest first.
func (c *Client) FindByRecipient(ctx context.Context, to string) ([]domain.StoredTransaction, error) {
	query := fmt.Sprintf(recipientQuery, to)
	return c.search(ctx, query, maxRecipientDocs)
}

// RecentLogs returns the most recently timestamped stored transactions
// across all recipients.
func (c *Client) RecentLogs(ctx context.Context, limit int) ([]domain.StoredTransaction, error) {
	return c.search(ctx, recentLogsQuery, limit)
}

func (c *Client) search(ctx context.Context, query string, size int) ([]domain.StoredTransaction, error) {
	start := time.Now().UnixMilli()
	res, err := c.esClient.Search(
		c.esClient.Search.WithContext(ctx),
		c.esClient.Search.WithIndex(c.indexName),
		c.esClient.Search.WithSize(size),
		c.esClient.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return nil, fmt.Errorf("calling elastic: %w", err)
	}
	defer closeBody(res.Body)
	if res.IsError() {
		return nil, errors.Errorf("got error response from elastic: %s", res.String())
	}

	var response searchResponse
	if err = json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if end := time.Now().UnixMilli(); end-start > 200 {
		log.Printf("[WARN] slow elastic search: %d hits (%dms)", len(response.Hits.Hits), end-start)
	}

	transactions := make([]domain.StoredTransaction, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		transactions = append(transactions, domain.StoredTransaction{
			Id:          hit.Id,
			Transaction: hit.Source,
		})
	}
	return transactions, nil
}

// DeleteByIDs removes the given documents in one bulk request.
func (c *Client) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:      c.indexName,
		Client:     c.esClient,
		NumWorkers: min(runtime.NumCPU(), 8),
	})
	if err != nil {
		return errors.Wrap(err, "Error creating bulk indexer")
	}

	for _, id := range ids {
		item := esutil.BulkIndexerItem{
			Action:     "delete",
			DocumentID: id,
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					log.Printf("Error deleting document [%s]: %s", item.DocumentID, err)
				} else {
					log.Printf("Error deleting document [%s]: [%s: %s]", item.DocumentID, res.Error.Type, res.Error.Reason)
				}
			},
		}
		err = bi.Add(ctx, item)
		if err != nil {
			return errors.Wrapf(err, "adding delete of [%s] to bulk indexer", id)
		}
	}

	err = bi.Close(ctx)
	if err != nil {
		return errors.Wrap(err, "Error closing bulk indexer")
	}

	biStats := bi.Stats()
	if biStats.NumFailed > 0 {
		return errors.Errorf("%d errors deleting [%d] documents", biStats.NumFailed, len(ids))
	}
	return nil
}

func closeBody(body io.ReadCloser) {
	err := body.Close()
	if err != nil {
		log.Printf("Error closing response body: %v", err)
	}
}
