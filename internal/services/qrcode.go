package services

import (
	"encoding/base64"
	"encoding/json"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"gorm.io/datatypes"
)

const qrSize = 256

// QRPayload is what an event's QR code encodes. Scanners send eventId
// back to verify and mark attendance.
type QRPayload struct {
	EventID    uint   `json:"eventId"`
	EventTitle string `json:"eventTitle"`
}

// renderQR returns the JSON payload for an event and its PNG rendering as
// a data URL.
func renderQR(eventID uint, title string) (datatypes.JSON, string, error) {
	payload, err := json.Marshal(QRPayload{EventID: eventID, EventTitle: title})
	if err != nil {
		return nil, "", errors.Trace(err)
	}

	png, err := qrcode.Encode(string(payload), qrcode.Medium, qrSize)
	if err != nil {
		return nil, "", errors.Annotatef(err, "rendering QR code for event %d", eventID)
	}

	return datatypes.JSON(payload), "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
