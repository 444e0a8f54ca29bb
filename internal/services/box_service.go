package services

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/familyfund/backend/internal/config"
)

// BoxService exposes the configured box set and renders deposit-instruction
// QR codes members can scan from the family group chat.
type BoxService struct {
	boxes *config.BoxConfig
}

func NewBoxService(boxes *config.BoxConfig) *BoxService {
	return &BoxService{boxes: boxes}
}

// List returns the configured boxes.
func (s *BoxService) List() []config.Box {
	return s.boxes.Boxes
}

// DepositQR renders a PNG QR code encoding the box's deposit instructions.
func (s *BoxService) DepositQR(boxID string) ([]byte, error) {
	box, ok := s.boxes.Get(boxID)
	if !ok {
		return nil, fmt.Errorf("%w: box %q", ErrNotFound, boxID)
	}

	payload, err := json.Marshal(map[string]string{
		"boxId":         box.ID,
		"name":          box.Name,
		"monthlyAmount": box.MonthlyAmount.String(),
		"reference":     fmt.Sprintf("FUND-%s", box.ID),
	})
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(string(payload), qrcode.Medium, 256)
}
