package clients

import (
	"context"
	"fmt"

	ws "challan-ledger/internal/transport/websocket"
)

// WebSocketClient pushes export progress and collection events to the user
// who initiated them.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{hub: hub}
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_progress",
		Channel: fmt.Sprintf("export_progress#%d", userID),
		Data:    data,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_complete",
		Channel: fmt.Sprintf("export_complete#%d", userID),
		Data: map[string]interface{}{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	})
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, userID int64, exportID, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_failed",
		Channel: fmt.Sprintf("export_failed#%d", userID),
		Data: map[string]interface{}{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	})
	return nil
}

// NotifyPaymentRecorded confirms a successful collection back to the cashier
// screen together with the new balance and status.
func (c *WebSocketClient) NotifyPaymentRecorded(ctx context.Context, userID int64, challanID, receiptNumber string, balanceDue int64, status string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "payment_recorded",
		Channel: fmt.Sprintf("payments#%d", userID),
		Data: map[string]interface{}{
			"challan_id":     challanID,
			"receipt_number": receiptNumber,
			"balance_due":    balanceDue,
			"status":         status,
		},
	})
	return nil
}
