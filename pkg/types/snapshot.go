package types

// StateSnapshot:
//   version: number            // strictly increasing per room; drop anything older
//   pending: boolean           // latest version not yet confirmed by the store
//   events: { type, team?, userId?, index?, points?, value? }[]
//   room:
//     code: string
//     status: "LOBBY" | "DUEL" | "ROUND" | "STEAL" | "FINISHED"
//     teamAName, teamBName: string
//     teamAScore, teamBScore, roundScore: number
//     strikes: 0..3
//     currentQuestionIndex: number
//     questions: { id, theme, text, answers: { text, points }[] }[]
//     revealedAnswers: number[]
//     activeTeam, originalTeam: "A" | "B" | ""
//     dice: { A?: 1..6, B?: 1..6 }
//     timerEndsAt: RFC 3339 string | null   // countdown = max(0, timerEndsAt - now)
//     users: { id, nickname, team, isCaptain, isHost, correctAnswers }[]
//     roundWinner?: "A" | "B"
//
// Clients derive sound cues by comparing consecutive snapshots:
//   strikes went up, or STEAL ended in FINISHED with no new reveal -> buzzer
//   new index in revealedAnswers -> ding
//   a team score went up -> tada
//   a new dice entry -> dice_roll
//   timerEndsAt set or moved -> timer
