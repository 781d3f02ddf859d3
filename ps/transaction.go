package ps

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Transaction is one commit in a store's history.
type Transaction struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>"
	Message string
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("%.8s %s %s: %s", transaction.Id, transaction.When.Format(time.RFC3339),
		transaction.Author, transaction.Message)
}

func newTransaction(c *object.Commit) Transaction {
	var author string
	if c.Author.Name != "" || c.Author.Email != "" {
		author = c.Author.Name + " <" + c.Author.Email + ">"
	}
	return Transaction{
		Id:      c.Hash.String(),
		When:    c.Committer.When,
		Author:  author,
		Message: strings.TrimSpace(c.Message),
	}
}

// LatestTransaction returns the HEAD commit, or the zero Transaction when
// nothing has been committed.
func (p *Persistence) LatestTransaction() Transaction {
	if !p.IsInitialized() {
		return Transaction{}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	head, err := p.repo.Head()
	if err != nil {
		return Transaction{}
	}
	commit, err := p.repo.CommitObject(head.Hash())
	if err != nil {
		return Transaction{}
	}
	return newTransaction(commit)
}

// TransactionsSince lists commits newer than asof, newest first.
func (p *Persistence) TransactionsSince(asof time.Time) []Transaction {
	if !p.IsInitialized() {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, err := p.repo.Head(); err != nil {
		return nil
	}
	commits, err := p.repo.Log(&git.LogOptions{Since: &asof})
	if err != nil {
		return nil
	}
	defer commits.Close()

	var transactions []Transaction
	for {
		c, err := commits.Next()
		if err != nil {
			return transactions
		}
		transactions = append(transactions, newTransaction(c))
	}
}
