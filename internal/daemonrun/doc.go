// Package daemonrun assembles the production object graph for "mediabot
// daemon": logger, store, Telegram client, pipeline and daemon.
package daemonrun
