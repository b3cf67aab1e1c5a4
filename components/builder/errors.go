package builder

import "errors"

var (
	// ErrNotFound reports a missing catalog entry, widget, or dashboard.
	ErrNotFound = errors.New("builder: not found")
	// ErrInvalidArgument reports a caller contract violation (empty name, immutable field change).
	ErrInvalidArgument = errors.New("builder: invalid argument")
	// ErrOutOfRange reports an index or coordinate outside its bounds.
	ErrOutOfRange = errors.New("builder: out of range")
	// ErrPersistence reports a storage read/write/decode failure. Stores recover from it locally.
	ErrPersistence = errors.New("builder: persistence failure")
	// ErrConflict reports a stale save against a newer stored version.
	ErrConflict = errors.New("builder: version conflict")
	// ErrCatalogUnavailable reports a catalog that could not be loaded.
	ErrCatalogUnavailable = errors.New("builder: catalog unavailable")
	// ErrUnsupportedWidget reports a widget type the store cannot convert.
	ErrUnsupportedWidget = errors.New("builder: unsupported widget type")
	// ErrNotConfirmed reports a destructive action attempted without confirmation.
	ErrNotConfirmed = errors.New("builder: confirmation required")
	// ErrNoDashboard reports that no dashboard is selected.
	ErrNoDashboard = errors.New("builder: no dashboard selected")
)

// Kind classifies errors for transports.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindNotFound           Kind = "not_found"
	KindInvalidArgument    Kind = "invalid_argument"
	KindOutOfRange         Kind = "out_of_range"
	KindPersistence        Kind = "persistence_failure"
	KindConflict           Kind = "conflict"
	KindCatalogUnavailable Kind = "catalog_unavailable"
	KindUnsupported        Kind = "unsupported"
	KindNotConfirmed       Kind = "not_confirmed"
)

var kindTable = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrNoDashboard, KindNotFound},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrOutOfRange, KindOutOfRange},
	{ErrPersistence, KindPersistence},
	{ErrConflict, KindConflict},
	{ErrCatalogUnavailable, KindCatalogUnavailable},
	{ErrUnsupportedWidget, KindUnsupported},
	{ErrNotConfirmed, KindNotConfirmed},
}

// KindOf maps an error to its Kind. Nil maps to the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindUnknown
}
