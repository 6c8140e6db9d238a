package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/crmimport/internal/crm"
	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/mapping"
	"github.com/rpattn/crmimport/internal/table"
)

// ErrInvalidSession is returned when a session is missing what an import needs.
var ErrInvalidSession = errors.New("invalid import session")

// Remote is the part of the CRM an import writes to.
type Remote interface {
	Endpoint() string
	FindDuplicate(ctx context.Context, identity domain.Identity) (string, bool, error)
	Create(ctx context.Context, payload domain.RecordPayload) (crm.CreateResult, error)
}

// SchemaSource provides the remote field catalog.
type SchemaSource interface {
	Fields(ctx context.Context) (domain.FieldCatalog, error)
}

// Client is a remote that can also describe its fields; *crm.Client implements it.
type Client interface {
	Remote
	SchemaSource
}

var _ Client = (*crm.Client)(nil)

// Session carries everything one import works on: the remote, its field catalog, the
// loaded table and the chosen mapping. It is built once before the import starts.
type Session struct {
	ID              uuid.UUID
	FileName        string
	Remote          Remote
	Fields          domain.FieldCatalog
	Table           *table.Table
	Mapping         domain.ColumnMapping
	CheckDuplicates bool

	closed bool
}

// SessionRequest describes a session to open.
type SessionRequest struct {
	Client          Client
	FileName        string
	Table           *table.Table
	Selections      map[string]string
	CheckDuplicates bool
}

// OpenSession fetches the field catalog and binds the selected columns. A catalog failure is
// a configuration error and a bad selection a mapping error; no row is touched in either case.
func OpenSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.Client == nil {
		return nil, fmt.Errorf("%w: no crm client", ErrInvalidSession)
	}
	if req.Table == nil {
		return nil, fmt.Errorf("%w: no table loaded", ErrInvalidSession)
	}

	fields, err := req.Client.Fields(ctx)
	if err != nil {
		return nil, err
	}
	return NewSession(req.Client, fields, req.FileName, req.Table, req.Selections, req.CheckDuplicates)
}

// NewSession builds a session from an already fetched catalog.
func NewSession(remote Remote, fields domain.FieldCatalog, fileName string, tbl *table.Table, selections map[string]string, checkDuplicates bool) (*Session, error) {
	if remote == nil {
		return nil, fmt.Errorf("%w: no crm client", ErrInvalidSession)
	}
	if strings.TrimSpace(remote.Endpoint()) == "" {
		return nil, fmt.Errorf("%w: endpoint is empty", ErrInvalidSession)
	}
	if tbl == nil {
		return nil, fmt.Errorf("%w: no table loaded", ErrInvalidSession)
	}

	columnMapping, err := mapping.Build(tbl.Columns, fields, selections)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:              uuid.New(),
		FileName:        fileName,
		Remote:          remote,
		Fields:          fields,
		Table:           tbl,
		Mapping:         columnMapping,
		CheckDuplicates: checkDuplicates,
	}, nil
}

// Close releases the table and mapping. A closed session cannot be run.
func (s *Session) Close() {
	s.Table = nil
	s.Mapping = domain.ColumnMapping{}
	s.Fields = nil
	s.closed = true
}

func (s *Session) validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil session", ErrInvalidSession)
	case s.closed:
		return fmt.Errorf("%w: session closed", ErrInvalidSession)
	case s.Remote == nil:
		return fmt.Errorf("%w: no crm client", ErrInvalidSession)
	case s.Table == nil:
		return fmt.Errorf("%w: no table loaded", ErrInvalidSession)
	case s.Mapping.Len() == 0:
		return fmt.Errorf("%w: %v", ErrInvalidSession, mapping.ErrEmptyMapping)
	}
	return nil
}
