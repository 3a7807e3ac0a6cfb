package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yakin/dating-app/internal/messaging"
	"github.com/yakin/dating-app/internal/presence"
)

// sweepInterval is how often expired presence hashes are evicted from the
// GEO index.
const sweepInterval = 5 * time.Minute

func main() {
	log.Println("Starting Yakin presence service...")

	// Redis setup.
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	workerName, _ := os.Hostname()
	if workerName == "" {
		workerName = "presenced-1"
	}

	presenceStore, err := presence.NewStore(redisAddr, workerName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "yakin-presenced"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Mirror live location updates into the GEO index. Realtime servers also
	// write on the hot path; this keeps the index warm for users connected to
	// instances that crashed mid-write.
	err = natsClient.SubscribeLocation(func(data []byte) {
		var evt messaging.LocationEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			log.Printf("[location] unmarshal error: %v", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := presenceStore.UpdateLocation(ctx, evt.UserID, evt.Latitude, evt.Longitude); err != nil {
			log.Printf("[location] update for user=%s failed: %v", evt.UserID, err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to location events: %v", err)
	}

	// Serve nearby-user queries over request/reply.
	err = natsClient.SubscribeNearbyRequests(func(msg *nats.Msg) {
		var req messaging.NearbyRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("[nearby] unmarshal error: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		found, err := presenceStore.Nearby(ctx, req.Latitude, req.Longitude, req.RadiusMeters, req.Limit)
		cancel()
		if err != nil {
			log.Printf("[nearby] query for user=%s failed: %v", req.UserID, err)
			return
		}

		resp := messaging.NearbyResponse{Users: make([]messaging.NearbyResult, 0, len(found))}
		for _, e := range found {
			resp.Users = append(resp.Users, messaging.NearbyResult{
				UserID:         e.UserID,
				Latitude:       e.Latitude,
				Longitude:      e.Longitude,
				DistanceMeters: e.DistanceMeters,
			})
		}

		respData, err := json.Marshal(resp)
		if err != nil {
			log.Printf("[nearby] marshal error: %v", err)
			return
		}
		if err := msg.Respond(respData); err != nil {
			log.Printf("[nearby] respond failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to nearby requests: %v", err)
	}

	// Periodic eviction of stale GEO members. The presence hashes expire via
	// TTL; the GEO set has no per-member expiry, so it is swept here.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				evicted, err := presenceStore.Sweep(ctx)
				cancel()
				if err != nil {
					log.Printf("[sweep] failed: %v", err)
					continue
				}
				if evicted > 0 {
					log.Printf("[sweep] evicted %d stale geo members", evicted)
				}
			}
		}
	}()

	log.Printf("Yakin presence service running")
	log.Printf("  redis_addr: %s", redisAddr)
	log.Printf("  nats_url:   %s", natsConfig.URL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	close(done)
	natsClient.Close()
	presenceStore.Close()
}
