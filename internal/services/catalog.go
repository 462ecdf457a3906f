package services

import (
	"fmt"
	"strings"

	"repair-crm/internal/dto"
	"repair-crm/internal/entities"
	"repair-crm/pkg/constants"
	apperrors "repair-crm/pkg/errors"
)

// Catalog - проиндексированный снимок справочников на время одного запроса.
type Catalog struct {
	Instruments map[uint64]entities.Instrument
	Services    map[uint64]entities.Service
	Parts       map[uint64]entities.Part
	Departments map[uint64]entities.Department
	Pipelines   map[uint64]entities.Pipeline
	Settings    map[uint64]entities.InstrumentSettings

	pipelinesByName map[string]uint64
	source          dto.CatalogDTO
}

var knownPipelineKinds = map[string]bool{
	constants.PipelineKindRepairs: true,
	constants.PipelineKindSalon:   true,
	constants.PipelineKindBarber:  true,
	constants.PipelineKindHoreca:  true,
}

// NewCatalog индексирует справочники и вычисляет настройки инструментов.
// Неизвестный тип конвейера - ошибка на входе, а не сюрприз при отправке.
func NewCatalog(data dto.CatalogDTO) (*Catalog, error) {
	c := &Catalog{
		Instruments:     make(map[uint64]entities.Instrument, len(data.Instruments)),
		Services:        make(map[uint64]entities.Service, len(data.Services)),
		Parts:           make(map[uint64]entities.Part, len(data.Parts)),
		Departments:     make(map[uint64]entities.Department, len(data.Departments)),
		Pipelines:       make(map[uint64]entities.Pipeline, len(data.Pipelines)),
		Settings:        make(map[uint64]entities.InstrumentSettings, len(data.Instruments)),
		pipelinesByName: make(map[string]uint64, len(data.Pipelines)),
	}

	for _, p := range data.Pipelines {
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if !knownPipelineKinds[p.Kind] {
			return nil, fmt.Errorf("конвейер %d: неизвестный тип %q", p.ID, p.Kind)
		}
		c.Pipelines[p.ID] = p
		c.pipelinesByName[strings.ToLower(p.Name)] = p.ID
	}
	for _, d := range data.Departments {
		c.Departments[d.ID] = d
	}
	for _, i := range data.Instruments {
		c.Instruments[i.ID] = i
	}
	for _, s := range data.Services {
		c.Services[s.ID] = s
	}
	for _, p := range data.Parts {
		c.Parts[p.ID] = p
	}

	data.InstrumentSettings = make([]entities.InstrumentSettings, 0, len(data.Instruments))
	for _, instrument := range data.Instruments {
		settings := entities.InstrumentSettings{
			InstrumentID:  instrument.ID,
			TracksSerials: instrument.TracksSerials,
			DefaultUrgent: instrument.DefaultUrgent,
		}
		if pipeline, err := c.PipelineFor(instrument.ID); err == nil {
			settings.PipelineID = pipeline.ID
			settings.PipelineKind = pipeline.Kind
			// ремонты всегда ведут бренды и серийники
			if pipeline.Kind == constants.PipelineKindRepairs {
				settings.TracksSerials = true
			}
		}
		c.Settings[instrument.ID] = settings
		data.InstrumentSettings = append(data.InstrumentSettings, settings)
	}

	c.source = data
	return c, nil
}

func (c *Catalog) DTO() dto.CatalogDTO {
	return c.source
}

func (c *Catalog) ServiceInstrument(serviceID uint64) (uint64, bool) {
	service, ok := c.Services[serviceID]
	if !ok || service.InstrumentID == nil {
		return 0, false
	}
	return *service.InstrumentID, true
}

// PipelineFor: тег конвейера инструмента, иначе конвейер его отдела.
func (c *Catalog) PipelineFor(instrumentID uint64) (entities.Pipeline, error) {
	instrument, ok := c.Instruments[instrumentID]
	if !ok {
		return entities.Pipeline{}, apperrors.NewResolutionError(apperrors.CodeInstrumentMissing,
			fmt.Sprintf("Инструмент %d не найден в каталоге", instrumentID))
	}

	if instrument.Pipeline != nil && *instrument.Pipeline != "" {
		if id, found := c.pipelinesByName[strings.ToLower(*instrument.Pipeline)]; found {
			return c.Pipelines[id], nil
		}
	}
	if instrument.DepartmentID != nil {
		if department, found := c.Departments[*instrument.DepartmentID]; found && department.PipelineID != nil {
			if pipeline, exists := c.Pipelines[*department.PipelineID]; exists {
				return pipeline, nil
			}
		}
	}
	return entities.Pipeline{}, apperrors.NewResolutionError(apperrors.CodePipelineMissing,
		fmt.Sprintf("Не удалось определить конвейер отдела для инструмента «%s»", instrument.Name))
}

// DepartmentFor - отдел, которому принадлежит конвейер инструмента (если известен).
func (c *Catalog) DepartmentFor(instrumentID uint64, pipelineID uint64) *uint64 {
	if instrument, ok := c.Instruments[instrumentID]; ok && instrument.DepartmentID != nil {
		id := *instrument.DepartmentID
		return &id
	}
	var found *uint64
	for _, department := range c.Departments {
		if department.PipelineID != nil && *department.PipelineID == pipelineID {
			if found == nil || department.ID < *found {
				id := department.ID
				found = &id
			}
		}
	}
	return found
}
