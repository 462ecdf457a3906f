package entities

type Instrument struct {
	ID            uint64  `json:"id" db:"id"`
	Name          string  `json:"name" db:"name"`
	DepartmentID  *uint64 `json:"department_id" db:"department_id"`
	Weight        float64 `json:"weight" db:"weight"`
	Pipeline      *string `json:"pipeline" db:"pipeline"`
	TracksSerials bool    `json:"tracks_serials" db:"tracks_serials"`
	DefaultUrgent bool    `json:"default_urgent" db:"default_urgent"`
}

type Service struct {
	ID           uint64  `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	Price        float64 `json:"price" db:"price"`
	InstrumentID *uint64 `json:"instrument_id" db:"instrument_id"`
}

type Part struct {
	ID    uint64  `json:"id" db:"id"`
	Name  string  `json:"name" db:"name"`
	Price float64 `json:"price" db:"price"`
}

type Department struct {
	ID         uint64  `json:"id" db:"id"`
	Name       string  `json:"name" db:"name"`
	PipelineID *uint64 `json:"pipeline_id" db:"pipeline_id"`
}

type Pipeline struct {
	ID     uint64  `json:"id" db:"id"`
	Name   string  `json:"name" db:"name"`
	Kind   string  `json:"kind" db:"kind"`
	Stages []Stage `json:"stages"`
}

type Stage struct {
	ID         uint64 `json:"id" db:"id"`
	PipelineID uint64 `json:"pipeline_id" db:"pipeline_id"`
	Name       string `json:"name" db:"name"`
	Position   int    `json:"position" db:"position"`
}

// InstrumentSettings - вычисленные флаги инструмента вместо нетипизированной карты.
type InstrumentSettings struct {
	InstrumentID  uint64 `json:"instrument_id"`
	TracksSerials bool   `json:"tracks_serials"`
	DefaultUrgent bool   `json:"default_urgent"`
	PipelineKind  string `json:"pipeline_kind"`
	PipelineID    uint64 `json:"pipeline_id,omitempty"`
}
