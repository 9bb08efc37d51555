package app

import (
	"context"
)

type DaemonService interface {
	CoreAPI
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SubscribeNotifications(cursor int64) ([]NotificationEvent, <-chan NotificationEvent, func())
}
