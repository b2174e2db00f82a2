// Package store defines the feature store seam and the backend registry.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/gdelt"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/query"
)

var (
	// ErrUnavailable means no usable handle to the feature collection.
	ErrUnavailable = errors.New("store unavailable")
	// ErrQueryExecution means the store failed while answering a query.
	ErrQueryExecution = errors.New("query execution failure")
)

// Store executes predicates against one named feature collection.
// A Store is shared by concurrent requests.
type Store interface {
	Query(ctx context.Context, p query.Predicate) (Cursor, error)
	Ping(ctx context.Context) error
	Close() error
}

// Cursor is a single-pass, non-restartable result sequence. Close releases
// server-side resources and may be called more than once.
type Cursor interface {
	Next() bool
	Feature() gdelt.Feature
	Err() error
	Close() error
}

// Limiter is implemented by cursors whose backend stops at a page size.
// Limited reports whether the page filled, so more matches may exist.
type Limiter interface {
	Limited() bool
}

// Params is the connection bundle for the GeoMesa Accumulo datastore.
type Params struct {
	User         string
	Password     string
	InstanceID   string
	Zookeepers   string
	TableName    string
	CollectStats bool
	TypeName     string
}

func (p Params) Validate() error {
	var missing []string
	if strings.TrimSpace(p.User) == "" {
		missing = append(missing, "user")
	}
	if strings.TrimSpace(p.InstanceID) == "" {
		missing = append(missing, "instanceId")
	}
	if strings.TrimSpace(p.Zookeepers) == "" {
		missing = append(missing, "zookeepers")
	}
	if strings.TrimSpace(p.TableName) == "" {
		missing = append(missing, "tableName")
	}
	if strings.TrimSpace(p.TypeName) == "" {
		missing = append(missing, "typeName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing connection params: %s", ErrUnavailable, strings.Join(missing, ", "))
	}
	return nil
}

// DataStoreParams renders the bundle with GeoMesa datastore keys.
// The password is redacted unless withSecret is set.
func (p Params) DataStoreParams(withSecret bool) map[string]string {
	pw := "***"
	if withSecret {
		pw = p.Password
	}
	return map[string]string{
		"accumulo.user":        p.User,
		"accumulo.password":    pw,
		"accumulo.instance.id": p.InstanceID,
		"accumulo.zookeepers":  p.Zookeepers,
		"accumulo.catalog":     p.TableName,
		"geomesa.stats.enable": strconv.FormatBool(p.CollectStats),
	}
}

// Layer is the qualified feature type name, catalog:type.
func (p Params) Layer() string {
	return p.TableName + ":" + p.TypeName
}
