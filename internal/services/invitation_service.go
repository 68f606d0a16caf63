package services

import (
	"bytes"
	"context"
	cryptorand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/rentdesk/payments/internal/config"
	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

const temporaryPasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

type Invitation struct {
	TenantID          string `json:"tenant_id"`
	CustomerID        string `json:"customer_id"`
	Email             string `json:"email"`
	FullName          string `json:"full_name"`
	OrderNumber       string `json:"order_number"`
	TemporaryPassword string `json:"temporary_password"`
}

type Notifier interface {
	SendInvitation(ctx context.Context, invitation Invitation) error
}

// InvitationService invites a customer to their account after their first
// confirmed order. It consumes order.confirmed and never fails the publisher.
type InvitationService struct {
	customers storage.CustomerStore
	notifier  Notifier
	argon     *config.Argon2Config
}

func NewInvitationService(customers storage.CustomerStore, notifier Notifier, argon *config.Argon2Config) *InvitationService {
	return &InvitationService{
		customers: customers,
		notifier:  notifier,
		argon:     argon,
	}
}

// HandleOrderConfirmed is an events.Handler for models.TopicOrderConfirmed.
func (s *InvitationService) HandleOrderConfirmed(ctx context.Context, event any) error {
	var confirmed models.OrderConfirmed
	switch e := event.(type) {
	case models.OrderConfirmed:
		confirmed = e
	case *models.OrderConfirmed:
		confirmed = *e
	default:
		return fmt.Errorf("unexpected event %T", event)
	}

	// Direct full payments are made by customers who already hold an account.
	if confirmed.ChargeKind != models.KindCheckout {
		return nil
	}

	if err := s.invite(ctx, confirmed); err != nil {
		log.Printf("[INVITE] Invitation for customer %s failed: %v", confirmed.CustomerID, err)
	}
	return nil
}

func (s *InvitationService) invite(ctx context.Context, event models.OrderConfirmed) error {
	customer, err := s.customers.GetCustomer(ctx, event.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}
	if customer.PasswordHash == "" || customer.LastLoginAt != nil || customer.InvitedAt != nil {
		return nil
	}

	password, err := generateTemporaryPassword(12)
	if err != nil {
		return err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	// The credential is stored and invited_at stamped before anything is sent.
	err = s.customers.SetTemporaryPassword(ctx, customer.ID, hash)
	if errors.Is(err, storage.ErrVersionConflict) {
		log.Printf("[INVITE] Customer %s already invited or active, skipping", customer.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store temporary password: %w", err)
	}

	err = s.notifier.SendInvitation(ctx, Invitation{
		TenantID:          event.TenantID,
		CustomerID:        customer.ID,
		Email:             customer.Email,
		FullName:          customer.FullName,
		OrderNumber:       event.OrderNumber,
		TemporaryPassword: password,
	})
	if err != nil {
		return fmt.Errorf("failed to send invitation: %w", err)
	}

	log.Printf("[INVITE] Invitation sent to customer %s for order %s", customer.ID, event.OrderNumber)
	return nil
}

func (s *InvitationService) hashPassword(password string) (string, error) {
	salt := make([]byte, s.argon.SaltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, s.argon.Time, s.argon.Memory, s.argon.Threads, s.argon.KeyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func generateTemporaryPassword(length int) (string, error) {
	limit := big.NewInt(int64(len(temporaryPasswordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := cryptorand.Int(cryptorand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = temporaryPasswordAlphabet[n.Int64()]
	}
	return string(out), nil
}

// HTTPNotifier posts invitations to the notification service.
type HTTPNotifier struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPNotifier(cfg *config.NotifyConfig) *HTTPNotifier {
	return &HTTPNotifier{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (n *HTTPNotifier) SendInvitation(ctx context.Context, invitation Invitation) error {
	body, err := json.Marshal(invitation)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier is used when no notification service is configured.
type LogNotifier struct{}

func (LogNotifier) SendInvitation(ctx context.Context, invitation Invitation) error {
	log.Printf("[INVITE] No notifier configured, invitation for %s not delivered at %s", invitation.CustomerID, time.Now().UTC().Format(time.RFC3339))
	return nil
}
