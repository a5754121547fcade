// Package gsession implements the connection and dispatch core of a
// real-time multiplayer game server: a TCP stream acceptor, a UDP
// datagram ingress loop, the claim protocol that correlates the two
// per player, and the broadcast/lifecycle machinery built on top.
package gsession
