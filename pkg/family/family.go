// Package family groups similar entries under a shared family hash, the way
// Telescope groups repeated queries and exceptions. Grouping uses the Drain
// template miner over one text per entry.
package family

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/go-errors/errors"
	"github.com/jaeyo/go-drain3/pkg/drain3"
	"github.com/tidwall/gjson"

	"github.com/strrl/telescope-dashboard/pkg/entry"
)

// sources extract the text an entry is grouped by.
var sources = map[entry.Type]func(gjson.Result) string{
	entry.TypeQuery: func(c gjson.Result) string { return c.Get("sql").String() },
	entry.TypeException: func(c gjson.Result) string {
		return strings.TrimSpace(c.Get("class").String() + " " + c.Get("message").String())
	},
	entry.TypeLog: func(c gjson.Result) string { return c.Get("message").String() },
}

// Grouper assigns family hashes. It is safe for concurrent use.
type Grouper struct {
	mu     sync.Mutex
	drains map[entry.Type]*drain3.Drain
	// hashes maps a Drain cluster to the hash of the template it was first
	// seen with, so a family keeps its hash as the template generalizes.
	hashes map[entry.Type]map[int64]string
}

// NewGrouper creates an empty Grouper.
func NewGrouper() *Grouper {
	return &Grouper{
		drains: map[entry.Type]*drain3.Drain{},
		hashes: map[entry.Type]map[int64]string{},
	}
}

func newDrain() (*drain3.Drain, error) {
	d, err := drain3.NewDrain(
		drain3.WithDepth(4),
		drain3.WithSimTh(0.4),
		drain3.WithExtraDelimiter([]string{"(", ")", ",", "="}),
	)
	if err != nil {
		return nil, errors.Errorf("create drain: %w", err)
	}
	return d, nil
}

// Hash returns the family hash of an entry. ok is false for types that are
// not grouped and for entries without grouping text.
func (g *Grouper) Hash(t entry.Type, content []byte) (hash string, ok bool, err error) {
	source, grouped := sources[t]
	if !grouped {
		return "", false, nil
	}
	text := source(gjson.ParseBytes(content))
	if text == "" {
		return "", false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	d, found := g.drains[t]
	if !found {
		if d, err = newDrain(); err != nil {
			return "", false, err
		}
		g.drains[t] = d
		g.hashes[t] = map[int64]string{}
	}

	cluster, _, err := d.AddLogMessage(text)
	if err != nil {
		return "", false, errors.Errorf("drain add: %w", err)
	}
	if cluster == nil {
		return "", false, nil
	}
	if h, seen := g.hashes[t][cluster.ClusterId]; seen {
		return h, true, nil
	}
	sum := md5.Sum([]byte(string(t) + ":" + cluster.GetTemplate()))
	h := hex.EncodeToString(sum[:])
	g.hashes[t][cluster.ClusterId] = h
	return h, true, nil
}
