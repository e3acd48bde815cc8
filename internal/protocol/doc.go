// Package protocol owns the PDCP PDU header contract.
//
// Ownership boundary:
//   - data and control-plane header layouts
//   - sequence number widths
//   - optional delivery timestamp used for delay measurement
//
// Ciphering, integrity and header compression are not part of the wire
// handling here.
package protocol
