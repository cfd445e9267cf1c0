package viewport

import (
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/models"
)

// FinishSubmit applies the outcome of a claim submission and returns a
// status message. The selection is cleared only when the claim was created
// so a rejected submission can be edited and sent again.
func (v *Viewport) FinishSubmit(c models.Claim, err error) string {
	switch {
	case errors.IsType(err, models.ErrTypeCellOccupied):
		return "some cells are already claimed"

	case err != nil:
		logs.Warn(errors.New("submitting claim failed").Wrap(err))
		return "submitting claim failed"
	}

	v.ClearSelection()
	return fmt.Sprintf("claimed %d cells as %s", len(c.Cells), c.Name)
}
