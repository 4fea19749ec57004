package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/whiskey-cellar/internal/adapter/storage"
	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/core/service"
)

const (
	distinctIDs   = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "whiskey-stress-*")
	if err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}
	defer os.RemoveAll(dir)

	kv, err := storage.Open(ctx, storage.Config{
		Driver:  storage.DriverBolt,
		DBName:  domain.DatabaseName,
		DataDir: dir,
	}, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}

	gw, err := service.OpenWhiskeyDB(ctx, kv)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer gw.Close()

	// Ids repeat after distinctIDs calls, so every later create collides.
	var seq atomic.Int32
	repo := service.NewWhiskeyRepository(gw, func() string {
		return fmt.Sprintf("cask-%02d", seq.Add(1)%distinctIDs)
	})

	var successCount atomic.Int32
	var duplicateCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			fields := domain.WhiskeyFields{Name: fmt.Sprintf("Cask %d", n), Country: "Scotland", Age: n % 30}
			_, err := repo.Create(ctx, fields).Wait(ctx)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrDuplicateKey):
				duplicateCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	duplicate := duplicateCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Distinct Ids:     %d\n", distinctIDs)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Duplicate:        %d\n", duplicate)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == distinctIDs && duplicate == totalRequests-distinctIDs {
		fmt.Printf("PASS: Exactly %d creates succeeded, %d rejected\n", distinctIDs, totalRequests-distinctIDs)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d duplicate, got %d/%d\n",
			distinctIDs, totalRequests-distinctIDs, success, duplicate)
	}

	all, err := repo.GetAll(ctx).Wait(ctx)
	if err != nil {
		log.Fatalf("failed to list records: %v", err)
	}
	fmt.Printf("Stored Records:   %d\n", len(all))

	if len(all) == distinctIDs {
		fmt.Println("PASS: Store holds one record per id")
	} else {
		fmt.Printf("FAIL: Expected %d records, got %d\n", distinctIDs, len(all))
	}

	for _, w := range all {
		if _, err := repo.Delete(ctx, w.ID).Wait(ctx); err != nil {
			log.Fatalf("failed to delete %s: %v", w.ID, err)
		}
	}
	rest, err := repo.GetAll(ctx).Wait(ctx)
	if err != nil {
		log.Fatalf("failed to list records: %v", err)
	}
	if len(rest) == 0 {
		fmt.Println("PASS: Store empty after deletes")
	} else {
		fmt.Printf("FAIL: Expected empty store, got %d records\n", len(rest))
	}
}
