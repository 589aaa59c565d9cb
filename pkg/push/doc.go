// Package push is the push channel transport. GatewaySender posts JSON
// notifications to an HTTP push gateway:
//
//	POST {RELAY_PUSH_GATEWAY_URL}
//	Authorization: Bearer {RELAY_PUSH_TOKEN}
//	{"device_token": "...", "title": "...", "body": "...", "data": {...}}
//
// 2xx is success. 4xx responses are permanent except 401, 403, 408, 425 and
// 429; everything else, network errors included, is retryable.
package push
