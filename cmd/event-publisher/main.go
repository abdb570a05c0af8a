package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
)

// Small CLI for poking the broker consumer during development.

type RequestMessage struct {
	RequestID string                 `json:"request_id"`
	APIKey    string                 `json:"api_key"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params"`
}

func main() {
	godotenv.Load()

	action := flag.String("action", "sync_run", "Action to perform (sync_run, provision_identity, push_attribute)")
	syncConfigID := flag.String("sync", "", "Synchronization configuration ID (for sync_run)")
	identityID := flag.String("identity", "", "Identity ID (for provision_identity, push_attribute)")
	systemID := flag.String("system", "", "System ID (for push_attribute)")
	attribute := flag.String("attribute", "", "Schema attribute (for push_attribute)")
	apiKey := flag.String("key", "engine-internal-key", "API key")
	flag.Parse()

	brokerURL := os.Getenv("BROKER_URL")
	if brokerURL == "" {
		brokerURL = "tcp://localhost:1883"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("event-publisher-" + fmt.Sprintf("%d", time.Now().Unix()))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("Failed to connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	log.Printf("Connected to broker: %s", brokerURL)

	params := map[string]interface{}{}
	switch *action {
	case "sync_run":
		params["sync_config_id"] = *syncConfigID
	case "provision_identity":
		params["identity_id"] = *identityID
	case "push_attribute":
		params["identity_id"] = *identityID
		params["system_id"] = *systemID
		params["schema_attribute"] = *attribute
	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	requestID := fmt.Sprintf("req_%d", time.Now().UnixNano())
	req := RequestMessage{
		RequestID: requestID,
		APIKey:    *apiKey,
		Action:    *action,
		Params:    params,
	}

	// Subscribe for the response before publishing
	responseTopic := "responses/" + requestID
	done := make(chan struct{})
	if token := client.Subscribe(responseTopic, 1, func(c mqtt.Client, msg mqtt.Message) {
		fmt.Printf("Response:\n%s\n", msg.Payload())
		close(done)
	}); token.Wait() && token.Error() != nil {
		log.Fatalf("Failed to subscribe: %v", token.Error())
	}

	payload, _ := json.Marshal(req)
	topic := "requests/" + *action
	if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		log.Fatalf("Failed to publish: %v", token.Error())
	}
	log.Printf("Published %s to %s", requestID, topic)

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Println("Timed out waiting for a response")
	}
}
