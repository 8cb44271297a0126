package voting

import (
	"context"

	"campusvote/models"
)

// Notifier is told about every committed lifecycle change, in commit order and
// after the transition has returned. Delivery is best effort and never affects
// the transition itself.
type Notifier interface {
	ElectionChanged(ctx context.Context, election models.Election, action models.ElectionAction) error
}

type nopNotifier struct{}

func (nopNotifier) ElectionChanged(context.Context, models.Election, models.ElectionAction) error {
	return nil
}
