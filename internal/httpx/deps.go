package httpx

import (
	"github.com/rs/zerolog"

	"VisionTag/internal/config"
	mdb "VisionTag/internal/mongo"
	"VisionTag/internal/report"
)

// Deps carries what the handlers need; built once in main and passed to NewRouter.
type Deps struct {
	MC      *mdb.Client
	Cfg     config.Config
	Runner  *report.Runner
	Queries []report.Query
	Log     zerolog.Logger
}
