package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sandeepkv93/omada-captive-portal/internal/controller"
	"github.com/sandeepkv93/omada-captive-portal/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

type fakeVerifier struct {
	username, password string
	calls              int
}

func (v *fakeVerifier) Verify(_ context.Context, username, password string) bool {
	v.calls++
	return username == v.username && password == v.password
}

type fakeController struct {
	mu          sync.Mutex
	token       string
	tokenErr    error
	submitErr   error
	submitted   []controller.AuthRequest
	tokens      []string
	invalidated int
}

func (c *fakeController) ObtainToken(context.Context) (string, error) {
	if c.tokenErr != nil {
		return "", c.tokenErr
	}
	return c.token, nil
}

func (c *fakeController) SubmitPortalAuth(_ context.Context, token string, req controller.AuthRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted = append(c.submitted, req)
	c.tokens = append(c.tokens, token)
	return c.submitErr
}

func (c *fakeController) InvalidateToken(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	return nil
}

var errControllerDown = errors.New("controller down")

func strPtr(v string) *string { return &v }
