package sqlinline

const QInsertTransaction = `--sql 4c19d1c5-95cd-4e95-b501-d7aa999ad008
insert into transactions(id, user_id, amount, type, plan, status, payment_id, created_at)
values ($1::uuid, $2::text, $3::numeric, $4::text, nullif($5::text, ''), $6::text, nullif($7::text, ''), now())
returning created_at;
`

const QListTransactions = `--sql 3789b476-1a22-47c1-b749-74818733b165
select id::text, user_id, amount::text, type, coalesce(plan, ''), status, coalesce(payment_id, ''), created_at
from transactions
where user_id = $1::text
order by created_at desc, seq desc
limit $2::int;
`
