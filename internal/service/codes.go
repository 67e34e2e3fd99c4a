package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const codeAttempts = 5

// newCode derives a short subscriber-facing token from a random UUID.
// PK-XXXXXXXX identifies an open session, RS-XXXXXXXX a reservation.
func newCode(prefix string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("%s-%s", prefix, raw[:8])
}

func (s *AllocationService) newParkingCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := newCode("PK")
		inUse, err := s.store.Sessions().ParkingCodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique parking code after %d attempts", codeAttempts)
}

func (s *AllocationService) newConfirmationCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := newCode("RS")
		inUse, err := s.store.Reservations().ConfirmationCodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique confirmation code after %d attempts", codeAttempts)
}
