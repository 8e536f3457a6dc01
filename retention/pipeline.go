// Package retention implements the transaction log retention pipeline: it
// fetches the transaction history of a wallet, stores the newest records
// deduplicated by hash, and caps the stored history per recipient.
package retention

import (
	"context"

	"github.com/orcohen/crypto-logs/domain"
	"github.com/orcohen/crypto-logs/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// retentionCap is the maximum number of stored records per recipient after
// a cleanup sweep.
const retentionCap = 10

// insertWindow is the number of freshly fetched transactions considered for
// storing; everything beyond it is returned to the caller but not persisted.
const insertWindow = 10

// logsLimit is the number of stored records served on the logs pages.
const logsLimit = 50

type Fetcher interface {
	GetTransactions(ctx context.Context, address string) ([]domain.Transaction, error)
}

type Store interface {
	InsertUnique(ctx context.Context, transaction domain.Transaction) (bool, error)
	DistinctRecipients(ctx context.Context) ([]string, error)
	FindByRecipient(ctx context.Context, to string) ([]domain.StoredTransaction, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	RecentLogs(ctx context.Context, limit int) ([]domain.StoredTransaction, error)
}

type Pipeline struct {
	fetcher         Fetcher
	store           Store
	pipelineMetrics *metrics.Metrics
	logger          *zap.SugaredLogger
}

func NewPipeline(fetcher Fetcher, store Store, m *metrics.Metrics, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		fetcher:         fetcher,
		store:           store,
		pipelineMetrics: m,
		logger:          logger,
	}
}

// Refresh runs the full per-request pipeline for one wallet: cleanup sweep
// over the whole store, fetch, dedup-insert of the newest records. It returns
// the freshly fetched list, not the stored subset.
func (p *Pipeline) Refresh(ctx context.Context, wallet string) ([]domain.Transaction, error) {
	if err := p.Cleanup(ctx); err != nil {
		return nil, errors.Wrap(err, "cleaning wallet logs")
	}

	transactions, err := p.fetcher.GetTransactions(ctx, wallet)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching transactions for [%s]", shorten(wallet))
	}
	p.pipelineMetrics.AddFetchedTransactions(len(transactions))

	if err := p.dedupInsert(ctx, transactions); err != nil {
		return nil, errors.Wrap(err, "storing transactions")
	}
	return transactions, nil
}

// dedupInsert stores every transaction among the first insertWindow entries
// whose hash is not stored yet. The store's create-on-id is atomic, so the
// check and the insert cannot interleave across concurrent requests.
func (p *Pipeline) dedupInsert(ctx context.Context, transactions []domain.Transaction) error {
	window := transactions
	if len(window) > insertWindow {
		window = window[:insertWindow]
	}

	var inserted, duplicates int
	for _, transaction := range window {
		ok, err := p.store.InsertUnique(ctx, transaction)
		if err != nil {
			return errors.Wrapf(err, "inserting transaction [%s]", transaction.Hash)
		}
		if ok {
			inserted++
		} else {
			duplicates++
		}
	}
	p.pipelineMetrics.AddInsertedTransactions(inserted, duplicates)
	if inserted > 0 {
		p.logger.Infow("Stored transactions", "inserted", inserted, "duplicates", duplicates)
	}
	return nil
}

// Cleanup enforces the retention cap for every recipient currently in the
// store: all but the retentionCap newest records per recipient are deleted.
// This is a full-store pass, regardless of which wallet triggered it.
func (p *Pipeline) Cleanup(ctx context.Context) error {
	recipients, err := p.store.DistinctRecipients(ctx)
	if err != nil {
		return errors.Wrap(err, "listing recipients")
	}
	p.pipelineMetrics.SetRecipients(len(recipients))

	for _, recipient := range recipients {
		logs, err := p.store.FindByRecipient(ctx, recipient)
		if err != nil {
			return errors.Wrapf(err, "finding records for [%s]", shorten(recipient))
		}
		if len(logs) <= retentionCap {
			continue
		}

		ids := make([]string, 0, len(logs)-retentionCap)
		for _, record := range logs[retentionCap:] {
			ids = append(ids, record.Id)
		}
		if err := p.store.DeleteByIDs(ctx, ids); err != nil {
			return errors.Wrapf(err, "deleting [%d] records for [%s]", len(ids), shorten(recipient))
		}
		p.pipelineMetrics.AddDeletedTransactions(len(ids))
		p.logger.Infow("Cleaned recipient", "recipient", shorten(recipient), "deleted", len(ids))
	}
	return nil
}

// RecentLogs returns the most recently timestamped stored records across all
// wallets. There is no per-requester filtering.
func (p *Pipeline) RecentLogs(ctx context.Context) ([]domain.StoredTransaction, error) {
	logs, err := p.store.RecentLogs(ctx, logsLimit)
	if err != nil {
		return nil, errors.Wrap(err, "reading recent logs")
	}
	return logs, nil
}

func shorten(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:12] + "..."
}
