// pkg/constants/constants.go
package constants

import "strings"

//============== VIEW CONTEXTS ==============

// ViewContext - экран, из которого пришла операция.
type ViewContext string

const (
	ViewReception  ViewContext = "reception"
	ViewDepartment ViewContext = "department"
	ViewQuote      ViewContext = "quote"
)

// BypassesTrayLock - приёмка и отделы могут править заблокированный лоток:
// техники дописывают данные после отправки. Остальным экранам это запрещено.
func (v ViewContext) BypassesTrayLock() bool {
	return v == ViewReception || v == ViewDepartment
}

//============== LOCK FLAGS ==============

const (
	LockOfficeDirect = "office_direct"
	LockCurierTrimis = "curier_trimis"
)

//============== TRAY SIZES ==============

var TraySizes = []string{"S", "M", "L", "XL"}

func IsTraySize(size string) bool {
	for _, s := range TraySizes {
		if s == size {
			return true
		}
	}
	return false
}

//============== STAGES ==============

// Названия этапов совпадают с записями stages.name в БД.
const (
	StageInLucru     = "IN LUCRU"
	StageFinalizata  = "FINALIZATA"
	StageAsteptPiese = "ASTEPT PIESE"
	StageInAsteptare = "IN ASTEPTARE"
)

//============== PIPELINE KINDS ==============

const (
	PipelineKindRepairs = "repairs"
	PipelineKindSalon   = "salon"
	PipelineKindBarber  = "barber"
	PipelineKindHoreca  = "horeca"
)

// SupportsAsteptPiese - "ждём запчасти" есть только у ремонтов.
func SupportsAsteptPiese(kind string) bool {
	return strings.EqualFold(kind, PipelineKindRepairs)
}

// SupportsInAsteptare - "в ожидании" есть у салонов, барберов и horeca.
func SupportsInAsteptare(kind string) bool {
	switch strings.ToLower(kind) {
	case PipelineKindSalon, PipelineKindBarber, PipelineKindHoreca:
		return true
	}
	return false
}

//============== DISPATCH GATE ==============

type DispatchGate string

const (
	// GateAnyFlag - достаточно одного флага доставки.
	GateAnyFlag DispatchGate = "any"
	// GateAllFlags - оба флага сразу. Флаги взаимоисключающие, так что с этим
	// значением отправка невозможна; оставлено до решения продукта.
	GateAllFlags DispatchGate = "all"
)

const DefaultDispatchGate = GateAnyFlag

func (g DispatchGate) Allows(officeDirect, curierTrimis bool) bool {
	if g == GateAllFlags {
		return officeDirect && curierTrimis
	}
	return officeDirect || curierTrimis
}

//============== CACHE KEYS ==============

const (
	CacheKeyCatalog = "catalog:snapshot"
)
