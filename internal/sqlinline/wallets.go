package sqlinline

const QInsertWalletIfMissing = `--sql 73c72234-f1d8-45fd-badf-41140f4afa2f
insert into wallets(user_id, balance, currency, created_at, updated_at)
values ($1::text, 0, $2::text, now(), now())
on conflict (user_id) do nothing;
`

const QSelectWallet = `--sql 7d4e8505-4e2b-4106-b41d-e8de73e12feb
select user_id, balance::text, currency, created_at, updated_at
from wallets
where user_id = $1::text;
`

const QCreditWallet = `--sql f784cdc2-19e6-4cd6-9f41-7b00df5cceb0
update wallets
set balance = balance + $2::numeric, updated_at = now()
where user_id = $1::text
returning balance::text;
`

// QDebitWallet only matches when the balance covers the amount, so the
// sufficiency check and the decrement are one statement.
const QDebitWallet = `--sql 2541b615-09d7-470d-9af0-9caba1309a56
update wallets
set balance = balance - $2::numeric, updated_at = now()
where user_id = $1::text
  and balance >= $2::numeric
returning balance::text;
`

const QSelectWalletBalance = `--sql c2fbe689-9ed7-49c4-9679-fbf50de46254
select balance::text
from wallets
where user_id = $1::text;
`
