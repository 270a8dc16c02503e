// Package mocks provides shared test doubles for the store interfaces.
package mocks
