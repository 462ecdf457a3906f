package seeders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"repair-crm/pkg/constants"
)

func TestStagesFor(t *testing.T) {
	assert.Equal(t,
		[]string{"NOUA", constants.StageInLucru, constants.StageFinalizata, constants.StageAsteptPiese},
		stagesFor(constants.PipelineKindRepairs),
	)
	assert.Equal(t,
		[]string{"NOUA", constants.StageInLucru, constants.StageFinalizata, constants.StageInAsteptare},
		stagesFor(constants.PipelineKindHoreca),
	)
}
