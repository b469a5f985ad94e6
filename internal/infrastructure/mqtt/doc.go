// Package mqtt publishes flashlight state to an MQTT broker.
//
// Each state change is published retained on <prefix>/state with the same
// JSON body the WebSocket observers receive:
//
//	flashlight/state          {"is_turned_on":true,"color":"#ff69b4"}
//	flashlight/system/status  {"status":"online","client_id":"flashlight-core",...}
//
// The status topic carries a Last Will and Testament, so subscribers see
// "offline" if the service dies without a graceful Close.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink := broadcast.NewMQTTSink(client, client.Topics().State())
//
// The MQTT bridge is optional (mqtt.enabled). A broker outage after startup
// makes deliveries fail, which removes the sink from the broadcast set; the
// pipeline itself is unaffected.
package mqtt
