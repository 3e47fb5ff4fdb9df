// README: Push notifications for trip assignments via FCM.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"cabdesk/internal/modules/driver"
	"cabdesk/internal/modules/trip"
)

// FCM delivers assignment pushes through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
	log    *slog.Logger
}

func NewFCM(client *messaging.Client, log *slog.Logger) *FCM {
	if log == nil {
		log = slog.Default()
	}
	return &FCM{client: client, log: log}
}

// TripAssigned pushes a new-assignment message to the driver's device.
// Drivers without a registered push token are skipped.
func (n *FCM) TripAssigned(ctx context.Context, d driver.Driver, t *trip.Trip) error {
	if d.PushToken == "" {
		n.log.Info("driver has no push token, skipping notification", "driver_id", d.ID)
		return nil
	}

	msg := &messaging.Message{
		Token: d.PushToken,
		Data: map[string]string{
			"type":            "trip_assigned",
			"trip_id":         t.ID.String(),
			"pickup_address":  t.PickupAddress,
			"dropoff_address": t.DropoffAddress,
			"immediate":       strconv.FormatBool(t.IsImmediate),
		},
		Notification: &messaging.Notification{
			Title: "New trip assigned",
			Body:  fmt.Sprintf("Pickup at %s", t.PickupAddress),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if t.PickupCoords != nil {
		msg.Data["pickup_lat"] = strconv.FormatFloat(t.PickupCoords.Lat, 'f', 6, 64)
		msg.Data["pickup_lng"] = strconv.FormatFloat(t.PickupCoords.Lng, 'f', 6, 64)
	}
	if t.EtaMinutes != nil {
		msg.Data["eta_minutes"] = strconv.FormatFloat(*t.EtaMinutes, 'f', 0, 64)
	}

	messageID, err := n.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	n.log.Info("assignment notification sent",
		"trip_id", t.ID, "driver_id", d.ID, "message_id", messageID)
	return nil
}
