// Package kafka holds Kafka configuration, transport setup and error
// classification shared by the producer subpackage.
//
// Decision events are published with producer.SendJSON, keyed by subclip
// hash so all events for one subclip land on the same partition.
package kafka
