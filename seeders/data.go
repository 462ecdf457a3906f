package seeders

import "repair-crm/pkg/constants"

// pipelinesData - конвейеры отделов. Отдел называется так же, как его конвейер.
var pipelinesData = []struct {
	Name string
	Kind string
}{
	{Name: "Reparatii", Kind: constants.PipelineKindRepairs},
	{Name: "Saloane", Kind: constants.PipelineKindSalon},
	{Name: "Frizerii", Kind: constants.PipelineKindBarber},
	{Name: "Horeca", Kind: constants.PipelineKindHoreca},
}

const stageNoua = "NOUA"

// stagesFor - этапы конвейера по его виду. Первый этап - начальный.
func stagesFor(kind string) []string {
	stages := []string{stageNoua, constants.StageInLucru, constants.StageFinalizata}
	if constants.SupportsAsteptPiese(kind) {
		stages = append(stages, constants.StageAsteptPiese)
	}
	if constants.SupportsInAsteptare(kind) {
		stages = append(stages, constants.StageInAsteptare)
	}
	return stages
}
