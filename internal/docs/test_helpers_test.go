package docs

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const baseUnixSeconds int64 = 1700000000

type sequentialIDProvider struct {
	mutex  sync.Mutex
	prefix string
	next   int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.next++
	return fmt.Sprintf("%s-%03d", p.prefix, p.next), nil
}

type testClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(baseUnixSeconds, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *testClock) Set(unixSeconds int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = time.Unix(unixSeconds, 0).UTC()
}

func (c *testClock) Advance(delta time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(delta)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *testClock) {
	t.Helper()
	return newTestServiceWithPool(t, 1)
}

func newTestServiceWithPool(t *testing.T, maxOpenConns int) (*Service, *gorm.DB, *testClock) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "quire_test.db")
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := newTestClock()
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &sequentialIDProvider{prefix: "id"},
	})
	if err != nil {
		t.Fatalf("failed to construct docs service: %v", err)
	}
	return service, db, clock
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustTitle(t *testing.T, value string) DocumentTitle {
	t.Helper()
	title, err := NewDocumentTitle(value)
	if err != nil {
		t.Fatalf("unexpected title error: %v", err)
	}
	return title
}

func mustPageCount(t *testing.T, value int64) PageCount {
	t.Helper()
	count, err := NewPageCount(value)
	if err != nil {
		t.Fatalf("unexpected page count error: %v", err)
	}
	return count
}

func mustPageIndex(t *testing.T, value int64) PageIndex {
	t.Helper()
	index, err := NewPageIndex(value)
	if err != nil {
		t.Fatalf("unexpected page index error: %v", err)
	}
	return index
}

func mustUpdate(t *testing.T, value []byte) UpdateBlob {
	t.Helper()
	blob, err := NewUpdateBlob(value)
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	return blob
}

func mustCreateDocument(t *testing.T, service *Service, owner string, pages int64) DocumentID {
	t.Helper()
	docID, err := service.CreateDocument(t.Context(), mustUserID(t, owner), mustTitle(t, "Draft"), mustPageCount(t, pages))
	if err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	return docID
}

func mustAddEditors(t *testing.T, service *Service, docID DocumentID, users ...string) {
	t.Helper()
	for _, user := range users {
		if _, err := service.AddEditor(t.Context(), docID, mustUserID(t, user)); err != nil {
			t.Fatalf("failed to add editor %s: %v", user, err)
		}
	}
}

func mustRequest(t *testing.T, service *Service, docID DocumentID, user string) JoinRequestID {
	t.Helper()
	outcome, err := service.CreateOrUpdateRequest(t.Context(), docID, mustUserID(t, user), nil)
	if err != nil {
		t.Fatalf("failed to create join request: %v", err)
	}
	if outcome.AlreadyMember {
		t.Fatalf("expected %s to be a non-member", user)
	}
	return outcome.RequestID
}

func stringPointer(value string) *string {
	return &value
}
