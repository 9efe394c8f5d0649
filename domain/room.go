package domain

// RoomName is the single supported channel. Membership is implicit:
// every registered session belongs to it, so no separate membership
// set is tracked.
const RoomName = "#Main"
