package test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	engineURL     = getEnv("ENGINE_URL", "http://localhost:3002")
	brokerURL     = getEnv("BROKER_URL", "tcp://localhost:1883")
	webhookSecret = getEnv("WEBHOOK_SECRET", "test-secret-123")
)

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHappyCase(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION=1 to run against a live engine and broker")
	}

	fmt.Println("🚀 Starting Happy Case Test")
	fmt.Println("\nFlow: IdM Hook → Engine → Message Broker → Subscriber")

	// Channel to receive message
	messageReceived := make(chan map[string]interface{}, 1)

	// Step 1: Connect subscriber to broker
	fmt.Println("📡 Step 1: Connecting subscriber to Message Broker...")

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(fmt.Sprintf("test-subscriber-%d", time.Now().UnixNano()))

	subscriber := mqtt.NewClient(opts)
	token := subscriber.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		t.Fatal("Subscriber connection timeout")
	}
	if token.Error() != nil {
		t.Fatalf("Subscriber connection error: %v", token.Error())
	}
	defer subscriber.Disconnect(1000)

	fmt.Println("   ✅ Subscriber connected to Message Broker")

	// Subscribe to topic
	topic := "events/identity.changed"
	subToken := subscriber.Subscribe(topic, 1, func(c mqtt.Client, m mqtt.Message) {
		fmt.Printf("\n📬 Step 3: Message received from broker!\n")
		fmt.Printf("   Topic: %s\n", m.Topic())

		var msg map[string]interface{}
		if err := json.Unmarshal(m.Payload(), &msg); err == nil {
			messageReceived <- msg
		}
	})

	if !subToken.WaitTimeout(5 * time.Second) {
		t.Fatal("Subscribe timeout")
	}
	fmt.Printf("   ✅ Subscribed to topic: %s\n", topic)

	// Step 2: Send webhook to the engine
	fmt.Println("\n📤 Step 2: Sending webhook to Engine...")

	payload := map[string]interface{}{
		"event_type": "identity.changed",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"data": map[string]interface{}{
			"identity_id": "identity_test_123",
			"username":    "jdoe",
		},
	}

	payloadBytes, _ := json.Marshal(payload)
	signature := generateSignature(payloadBytes, webhookSecret)

	fmt.Printf("   URL: %s/hook\n", engineURL)
	fmt.Printf("   Event: identity.changed\n")
	fmt.Printf("   Signature: %s...\n", signature[:20])

	req, _ := http.NewRequest("POST", engineURL+"/hook", bytes.NewReader(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event", "identity.changed")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to send webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		fmt.Printf("   ✅ Engine responded: %d\n", resp.StatusCode)
	} else {
		t.Fatalf("Engine error: %d", resp.StatusCode)
	}

	// Step 3: Wait for message
	fmt.Println("\n⏳ Waiting for message to arrive at subscriber...")

	select {
	case msg := <-messageReceived:
		fmt.Println("\n📊 Test Results:")
		fmt.Println("──────────────────────────────────────────────────")
		fmt.Println("✅ Message received from Message Broker!")

		data, _ := msg["data"].(map[string]interface{})

		// Verify payload
		fmt.Println("\nPayload verification:")
		checks := []struct {
			name     string
			expected interface{}
			actual   interface{}
		}{
			{"event_type", "identity.changed", msg["event_type"]},
			{"identity_id", "identity_test_123", data["identity_id"]},
			{"username", "jdoe", data["username"]},
		}

		allPassed := true
		for _, check := range checks {
			passed := check.expected == check.actual
			if !passed {
				allPassed = false
			}
			status := "✅"
			if !passed {
				status = "❌"
			}
			fmt.Printf("  %s %s: %v\n", status, check.name, check.actual)
		}

		fmt.Println("\n──────────────────────────────────────────────────")
		if allPassed {
			fmt.Println("🎉 ALL TESTS PASSED!")
		} else {
			t.Fatal("Some checks failed")
		}

	case <-time.After(5 * time.Second):
		t.Fatal("❌ Message NOT received from Message Broker (timeout)")
	}
}
